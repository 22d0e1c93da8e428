// Package configsource serves endpoint and environment lookups from the
// parsed gateway routing file.
package configsource

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/sqlgate/internal/config"
	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.EndpointSource    = (*Source)(nil)
	_ driven.EnvironmentSource = (*Source)(nil)
)

// Source adapts a config.Gateway to the configuration ports. The Gateway is
// treated as read-only after construction.
type Source struct {
	gw *config.Gateway
}

// New wraps gw. A nil gw behaves like an empty routing file.
func New(gw *config.Gateway) *Source {
	if gw == nil {
		gw = &config.Gateway{}
	}
	return &Source{gw: gw}
}

// LoadEndpoint returns the endpoint entry for name as a model value. The
// allow-list is copied so callers cannot mutate the parsed file.
func (s *Source) LoadEndpoint(_ context.Context, name string) (model.EndpointConfig, error) {
	entry, ok := s.gw.Endpoints[name]
	if !ok {
		return model.EndpointConfig{}, fmt.Errorf("endpoint %q: %w", name, driven.ErrNotFound)
	}

	var allowed []string
	if len(entry.AllowedIDs) > 0 {
		allowed = append(make([]string, 0, len(entry.AllowedIDs)), entry.AllowedIDs...)
	}

	return model.EndpointConfig{
		Name:       name,
		Schema:     entry.Schema,
		Object:     entry.Object,
		AllowedIDs: allowed,
	}, nil
}

// LoadEnvironment returns the binding for name.
func (s *Source) LoadEnvironment(_ context.Context, name string) (model.EnvironmentBinding, error) {
	entry, ok := s.gw.Environments[name]
	if !ok {
		return model.EnvironmentBinding{}, fmt.Errorf("environment %q: %w", name, driven.ErrNotFound)
	}

	return model.EnvironmentBinding{
		Name:             name,
		DisplayName:      entry.DisplayName,
		Driver:           entry.Driver,
		ConnectionString: entry.ConnectionString,
	}, nil
}
