package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

// EnvironmentResolver maps a request's environment name to a database binding.
type EnvironmentResolver struct {
	source    driven.EnvironmentSource
	supported func(driver string) bool
}

// NewEnvironmentResolver creates an EnvironmentResolver. supported reports
// whether a driver name can be served; nil accepts every driver.
func NewEnvironmentResolver(source driven.EnvironmentSource, supported func(driver string) bool) *EnvironmentResolver {
	return &EnvironmentResolver{source: source, supported: supported}
}

// Resolve returns the binding for name. Unknown names, empty connection
// strings and unsupported drivers all yield ErrEnvironmentNotConfigured.
func (r *EnvironmentResolver) Resolve(ctx context.Context, name string) (model.EnvironmentBinding, error) {
	env, err := r.source.LoadEnvironment(ctx, name)
	if errors.Is(err, driven.ErrNotFound) {
		return model.EnvironmentBinding{}, fmt.Errorf("environment %q: %w", name, ErrEnvironmentNotConfigured)
	}
	if err != nil {
		return model.EnvironmentBinding{}, fmt.Errorf("resolve environment %q: %w", name, err)
	}

	if env.ConnectionString == "" {
		return model.EnvironmentBinding{}, fmt.Errorf("environment %q has no connection string: %w", name, ErrEnvironmentNotConfigured)
	}
	if env.Driver == "" {
		env.Driver = model.DriverSQLServer
	}
	if r.supported != nil && !r.supported(env.Driver) {
		return model.EnvironmentBinding{}, fmt.Errorf("environment %q driver %q: %w", name, env.Driver, ErrEnvironmentNotConfigured)
	}

	return env, nil
}
