package application_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sqlgate/internal/application"
	"github.com/ericfisherdev/sqlgate/internal/domain/model"
)

func TestEndpointResolver_Resolve(t *testing.T) {
	source := &mockEndpointSource{}
	source.set("orders", model.EndpointConfig{Object: "Orders", AllowedIDs: []string{"shop"}})
	source.set("audit", model.EndpointConfig{Schema: "ops", Object: "Audit"})
	r := application.NewEndpointResolver(source)
	ctx := context.Background()

	cfg, err := r.Resolve(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, model.EndpointConfig{Name: "orders", Schema: "dbo", Object: "Orders", AllowedIDs: []string{"shop"}}, cfg)

	cfg, err = r.Resolve(ctx, "audit")
	require.NoError(t, err)
	assert.Equal(t, "ops", cfg.Schema)
	assert.False(t, cfg.HasAllowList())
}

func TestEndpointResolver_CachesHits(t *testing.T) {
	source := &mockEndpointSource{}
	source.set("orders", model.EndpointConfig{Object: "Orders"})
	r := application.NewEndpointResolver(source)

	for range 3 {
		_, err := r.Resolve(context.Background(), "orders")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, source.calls)
}

func TestEndpointResolver_DoesNotCacheMisses(t *testing.T) {
	source := &mockEndpointSource{}
	r := application.NewEndpointResolver(source)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "late")
	require.ErrorIs(t, err, application.ErrEndpointNotConfigured)

	source.set("late", model.EndpointConfig{Object: "Late"})

	cfg, err := r.Resolve(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, "Late", cfg.Object)
}

func TestEndpointResolver_DefaultWebhookEndpoint(t *testing.T) {
	r := application.NewEndpointResolver(&mockEndpointSource{})

	cfg, err := r.Resolve(context.Background(), application.DefaultEndpoint)
	require.NoError(t, err)
	assert.Equal(t, "dbo", cfg.Schema)
	assert.Equal(t, "WebhookData", cfg.Object)
	assert.Nil(t, cfg.AllowedIDs)
}

func TestEndpointResolver_ConfiguredWebhookOverridesDefault(t *testing.T) {
	source := &mockEndpointSource{}
	source.set("webhook", model.EndpointConfig{Schema: "ingest", Object: "Hooks", AllowedIDs: []string{"a"}})
	r := application.NewEndpointResolver(source)

	cfg, err := r.Resolve(context.Background(), "webhook")
	require.NoError(t, err)
	assert.Equal(t, "ingest", cfg.Schema)
	assert.Equal(t, "Hooks", cfg.Object)
}

func TestEndpointResolver_Concurrent(t *testing.T) {
	source := &mockEndpointSource{}
	source.set("orders", model.EndpointConfig{Object: "Orders"})
	r := application.NewEndpointResolver(source)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := r.Resolve(context.Background(), "orders")
			assert.NoError(t, err)
			assert.Equal(t, "Orders", cfg.Object)
		}()
	}
	wg.Wait()
}

func TestEnvironmentResolver_Resolve(t *testing.T) {
	source := &mockEnvironmentSource{environments: map[string]model.EnvironmentBinding{
		"dev":     {Name: "dev", ConnectionString: "sqlserver://dev"},
		"local":   {Name: "local", Driver: "sqlite", ConnectionString: "file:local.db"},
		"empty":   {Name: "empty", Driver: "sqlserver"},
		"unknown": {Name: "unknown", Driver: "oracle", ConnectionString: "x"},
	}}
	supported := func(d string) bool { return d == model.DriverSQLServer || d == model.DriverSQLite }
	r := application.NewEnvironmentResolver(source, supported)
	ctx := context.Background()

	env, err := r.Resolve(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, model.DriverSQLServer, env.Driver)

	env, err = r.Resolve(ctx, "local")
	require.NoError(t, err)
	assert.Equal(t, model.DriverSQLite, env.Driver)

	for _, name := range []string{"missing", "empty", "unknown"} {
		_, err := r.Resolve(ctx, name)
		assert.ErrorIs(t, err, application.ErrEnvironmentNotConfigured, name)
	}
}
