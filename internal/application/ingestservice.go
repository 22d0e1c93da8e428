package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

var webhookIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// IngestRequest is a single webhook delivery.
type IngestRequest struct {
	Environment string
	// Endpoint defaults to DefaultEndpoint.
	Endpoint  string
	WebhookID string
	Payload   []byte
}

// IngestService writes webhook payloads into the table configured for an
// endpoint, creating the table on first use.
type IngestService struct {
	environments    *EnvironmentResolver
	endpoints       *EndpointResolver
	datastores      driven.DatastoreProvider
	provisioner     *Provisioner
	strictAllowList bool
	logger          *slog.Logger

	now func() time.Time
}

// NewIngestService wires an IngestService. With strictAllowList set, an
// endpoint without an allow-list rejects every webhook identifier.
func NewIngestService(
	environments *EnvironmentResolver,
	endpoints *EndpointResolver,
	datastores driven.DatastoreProvider,
	provisioner *Provisioner,
	strictAllowList bool,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		environments:    environments,
		endpoints:       endpoints,
		datastores:      datastores,
		provisioner:     provisioner,
		strictAllowList: strictAllowList,
		logger:          logger,
		now:             time.Now,
	}
}

// Ingest validates req, checks the allow-list and inserts the payload.
// It returns the generated record ID.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (int64, error) {
	if !webhookIDPattern.MatchString(req.WebhookID) {
		return 0, fmt.Errorf("webhook id %q: %w", req.WebhookID, ErrInvalidInput)
	}

	payload, err := compactJSON(req.Payload)
	if err != nil {
		return 0, err
	}

	env, err := s.environments.Resolve(ctx, req.Environment)
	if err != nil {
		return 0, err
	}

	endpointName := req.Endpoint
	if endpointName == "" {
		endpointName = DefaultEndpoint
	}
	endpoint, err := s.endpoints.Resolve(ctx, endpointName)
	if err != nil {
		return 0, err
	}

	if !s.admits(endpoint, req.WebhookID) {
		s.logger.Warn("webhook id not allowed",
			"environment", env.Name, "endpoint", endpoint.Name, "webhook_id", req.WebhookID)
		return 0, fmt.Errorf("webhook id %q on endpoint %q: %w", req.WebhookID, endpoint.Name, ErrAccessDenied)
	}

	ds, err := s.datastores.Datastore(ctx, env)
	if err != nil {
		return 0, fmt.Errorf("datastore %q: %w", env.Name, err)
	}

	if err := s.provisioner.EnsureTable(ctx, ds, endpoint.Schema, endpoint.Object); err != nil {
		return 0, err
	}

	id, err := ds.InsertRecord(ctx, endpoint.Schema, endpoint.Object, model.IngestedRecord{
		WebhookID:  req.WebhookID,
		Payload:    payload,
		ReceivedAt: s.now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("ingest: %w", err)
	}

	s.logger.Debug("webhook ingested",
		"environment", env.Name, "endpoint", endpoint.Name, "webhook_id", req.WebhookID, "id", id)

	return id, nil
}

func (s *IngestService) admits(endpoint model.EndpointConfig, webhookID string) bool {
	if !endpoint.HasAllowList() {
		return !s.strictAllowList
	}
	return endpoint.Allows(webhookID)
}

func compactJSON(payload []byte) (string, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return "", fmt.Errorf("empty payload: %w", ErrInvalidInput)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return "", fmt.Errorf("payload is not valid JSON: %w", ErrInvalidInput)
	}
	return buf.String(), nil
}
