package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

// DefaultEndpoint is the endpoint webhooks are written to. It resolves to
// dbo.WebhookData with no allow-list when the configuration does not define it.
const DefaultEndpoint = "webhook"

// EndpointResolver maps logical endpoint names to physical objects. Resolved
// configurations are cached for the life of the process; misses are not.
type EndpointResolver struct {
	source driven.EndpointSource
	cache  sync.Map // name -> model.EndpointConfig
}

// NewEndpointResolver creates an EndpointResolver over source.
func NewEndpointResolver(source driven.EndpointSource) *EndpointResolver {
	return &EndpointResolver{source: source}
}

// Resolve returns the configuration for name or ErrEndpointNotConfigured.
func (r *EndpointResolver) Resolve(ctx context.Context, name string) (model.EndpointConfig, error) {
	if cached, ok := r.cache.Load(name); ok {
		return cached.(model.EndpointConfig), nil
	}

	cfg, err := r.source.LoadEndpoint(ctx, name)
	switch {
	case errors.Is(err, driven.ErrNotFound) && name == DefaultEndpoint:
		cfg = model.EndpointConfig{Name: DefaultEndpoint, Object: "WebhookData"}
	case errors.Is(err, driven.ErrNotFound):
		return model.EndpointConfig{}, fmt.Errorf("endpoint %q: %w", name, ErrEndpointNotConfigured)
	case err != nil:
		return model.EndpointConfig{}, fmt.Errorf("resolve endpoint %q: %w", name, err)
	}

	if cfg.Object == "" {
		return model.EndpointConfig{}, fmt.Errorf("endpoint %q has no object: %w", name, ErrEndpointNotConfigured)
	}
	if cfg.Schema == "" {
		cfg.Schema = model.DefaultSchema
	}
	cfg.Name = name

	actual, _ := r.cache.LoadOrStore(name, cfg)
	return actual.(model.EndpointConfig), nil
}
