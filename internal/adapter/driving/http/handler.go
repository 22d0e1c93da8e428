// Package httphandler is the HTTP driving adapter: webhook ingestion, the
// read endpoint and the health probe.
package httphandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ericfisherdev/sqlgate/internal/application"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
	"github.com/ericfisherdev/sqlgate/internal/domain/sqlident"
)

// notFoundMessage is shared by unknown environments, unknown endpoints and
// webhook ids rejected by an allow-list.
const notFoundMessage = "endpoint not found"

// Options tune the router.
type Options struct {
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	// TrustProxy enables chi's RealIP middleware.
	TrustProxy bool
}

// Handler is the HTTP driving adapter that serves the gateway API.
type Handler struct {
	tokens    *application.TokenService
	ingest    *application.IngestService
	reads     *application.ReadService
	health    *application.HealthService
	admission *application.Admission
	maxBody   int64
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	tokens *application.TokenService,
	ingest *application.IngestService,
	reads *application.ReadService,
	health *application.HealthService,
	admission *application.Admission,
	maxBodyBytes int64,
	logger *slog.Logger,
) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Handler{
		tokens:    tokens,
		ingest:    ingest,
		reads:     reads,
		health:    health,
		admission: admission,
		maxBody:   maxBodyBytes,
		logger:    logger,
	}
}

// NewRouter registers all routes on a chi router. Gateway routes pass the IP
// limiter, bearer authentication and the token limiter, in that order.
func NewRouter(h *Handler, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(func(next http.Handler) http.Handler { return loggingMiddleware(h.logger, next) })
	// Recovery innermost so panics are caught before logging.
	r.Use(func(next http.Handler) http.Handler { return recoveryMiddleware(h.logger, next) })

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/api/v1/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(opts.RequestTimeout))
		r.Use(h.limitIP)
		r.Use(h.authenticate)
		r.Use(h.limitToken)

		r.Post("/webhook/{environment}/{webhookId}", h.ReceiveWebhook)
		r.Get("/api/{environment}/{endpoint}", h.Query)
	})

	return r
}

// ReceiveWebhook stores the JSON body for the webhook id in the URL.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	id, err := h.ingest.Ingest(r.Context(), application.IngestRequest{
		Environment: chi.URLParam(r, "environment"),
		Endpoint:    application.DefaultEndpoint,
		WebhookID:   chi.URLParam(r, "webhookId"),
		Payload:     body,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, WebhookResponse{Message: "Webhook data received", ID: id})
}

// Query selects rows from a configured endpoint.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	opts, err := application.ParseReadOptions(r.URL.Query())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	rows, err := h.reads.Read(r.Context(), chi.URLParam(r, "environment"), chi.URLParam(r, "endpoint"), opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{Value: rows})
}

// Health reports whether the credential store is reachable. Failing
// destination databases mark the response degraded but keep it 200, since the
// gateway itself can still authenticate and route.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Check(r.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}

	destinations := "ok"
	if err := h.health.CheckDestinations(r.Context()); err != nil {
		h.logger.Warn("destination health check failed", "error", err)
		destinations = "degraded"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		Destinations: destinations,
		Time:         time.Now().UTC().Format(time.RFC3339),
	})
}

// writeServiceError maps application and port errors to responses. Details of
// unexpected failures stay in the log, keyed by request id.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidToken):
		writeUnauthorized(w)
	case errors.Is(err, application.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sqlident.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, "invalid identifier")
	case errors.Is(err, application.ErrEndpointNotConfigured),
		errors.Is(err, application.ErrEnvironmentNotConfigured),
		errors.Is(err, application.ErrAccessDenied):
		h.logger.Debug("request not routed", "request_id", RequestID(r.Context()), "reason", err)
		writeError(w, http.StatusNotFound, notFoundMessage)
	case errors.Is(err, driven.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("store unavailable", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, context.Canceled):
		h.logger.Debug("request canceled", "request_id", RequestID(r.Context()))
		writeError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		h.logger.Error("request failed", "request_id", RequestID(r.Context()), "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
