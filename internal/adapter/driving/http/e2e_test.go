package httphandler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sqlgate/internal/adapter/driven/configsource"
	"github.com/ericfisherdev/sqlgate/internal/adapter/driven/ratelimit"
	sqliteadapter "github.com/ericfisherdev/sqlgate/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/sqlgate/internal/adapter/driven/sqlstore"
	"github.com/ericfisherdev/sqlgate/internal/adapter/driven/tokenfile"
	httphandler "github.com/ericfisherdev/sqlgate/internal/adapter/driving/http"
	"github.com/ericfisherdev/sqlgate/internal/application"
	"github.com/ericfisherdev/sqlgate/internal/config"
	"github.com/ericfisherdev/sqlgate/internal/domain/model"
)

// TestEndToEnd wires the real adapters: SQLite credential store, token files,
// YAML routing and a SQLite destination database.
func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqliteadapter.NewDB(ctx, filepath.Join(dir, "sqlgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqliteadapter.RunMigrations(db.Writer))

	gw, err := config.ParseGateway([]byte(`
environments:
  dev:
    display_name: Development
    driver: sqlite
    connection_string: "file:` + filepath.Join(dir, "dev.db") + `"
endpoints:
  webhook:
    allowed_ids: [webhook1]
    object: WebhookData
`))
	require.NoError(t, err)
	source := configsource.New(gw)

	pools := sqlstore.NewPools()
	t.Cleanup(func() { _ = pools.Close() })

	credentials := sqliteadapter.NewCredentialRepo(db)
	artifacts := tokenfile.New(filepath.Join(dir, "tokens"))
	tokens := application.NewTokenService(credentials, artifacts, config.MinKDFIterations, logger)
	environments := application.NewEnvironmentResolver(source, sqlstore.SupportedDriver)
	endpoints := application.NewEndpointResolver(source)

	h := httphandler.NewHandler(
		tokens,
		application.NewIngestService(environments, endpoints, pools, application.NewProvisioner(logger), false, logger),
		application.NewReadService(environments, endpoints, pools),
		application.NewHealthService(credentials, pools),
		application.NewAdmission(
			ratelimit.NewMemory(model.RateLimit{Limit: 100, Window: time.Minute}),
			ratelimit.NewMemory(model.RateLimit{Limit: 100, Window: time.Minute}),
		),
		1<<20,
		logger,
	)
	srv := httptest.NewServer(httphandler.NewRouter(h, httphandler.Options{RequestTimeout: 10 * time.Second}))
	t.Cleanup(srv.Close)

	issued, err := tokens.Issue(ctx, "alice")
	require.NoError(t, err)

	artifactPath, err := artifacts.Path("alice")
	require.NoError(t, err)
	written, err := os.ReadFile(artifactPath)
	require.NoError(t, err)
	assert.Equal(t, issued.Token, strings.TrimSpace(string(written)))

	call := func(method, path, body string) *http.Response {
		t.Helper()
		req, err := http.NewRequestWithContext(ctx, method, srv.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+issued.Token)
		req.Header.Set("Content-Type", "application/json")
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := call(http.MethodPost, "/webhook/dev/webhook1", `{"x":1}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created httphandler.WebhookResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "Webhook data received", created.Message)
	assert.Equal(t, int64(1), created.ID)

	resp = call(http.MethodPost, "/webhook/dev/other", `{"x":2}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = call(http.MethodGet, "/api/dev/webhook?$select=Id,WebhookId,Payload", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows struct {
		Value []map[string]any `json:"value"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows.Value, 1)
	assert.Equal(t, "webhook1", rows.Value[0]["WebhookId"])
	assert.Equal(t, `{"x":1}`, rows.Value[0]["Payload"])

	resp = call(http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health httphandler.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Destinations)
	assert.Equal(t, 1, pools.Len())

	ok, err := tokens.Revoke(ctx, issued.ID)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = os.Stat(artifactPath)
	assert.True(t, os.IsNotExist(err))

	resp = call(http.MethodPost, "/webhook/dev/webhook1", `{"x":3}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
