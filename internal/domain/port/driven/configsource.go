package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
)

// ErrNotFound is returned by configuration sources for unknown names.
var ErrNotFound = errors.New("not found")

// EndpointSource loads endpoint configuration by logical name.
type EndpointSource interface {
	LoadEndpoint(ctx context.Context, name string) (model.EndpointConfig, error)
}

// EnvironmentSource loads environment bindings by name.
type EnvironmentSource interface {
	LoadEnvironment(ctx context.Context, name string) (model.EnvironmentBinding, error)
}
