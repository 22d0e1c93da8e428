package application

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

// HealthService reports whether the gateway can authenticate requests and
// whether its open destination databases answer.
type HealthService struct {
	credentials  driven.CredentialStore
	destinations driven.DestinationPinger
}

// NewHealthService creates a HealthService. destinations may be nil.
func NewHealthService(credentials driven.CredentialStore, destinations driven.DestinationPinger) *HealthService {
	return &HealthService{credentials: credentials, destinations: destinations}
}

// Check pings the credential store.
func (s *HealthService) Check(ctx context.Context) error {
	if err := s.credentials.Ping(ctx); err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	return nil
}

// CheckDestinations pings every destination pool opened so far. Environments
// that have not served a request yet are not dialed.
func (s *HealthService) CheckDestinations(ctx context.Context) error {
	if s.destinations == nil {
		return nil
	}
	if err := s.destinations.Ping(ctx); err != nil {
		return fmt.Errorf("destinations: %w", err)
	}
	return nil
}
