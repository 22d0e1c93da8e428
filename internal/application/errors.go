package application

import "errors"

// Sentinel errors returned by application services. The HTTP adapter maps
// them to status codes with errors.Is.
var (
	// ErrInvalidInput marks a malformed request: bad webhook identifier,
	// invalid JSON payload or unsupported query option.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidToken is returned for missing, malformed, unknown or revoked
	// bearer tokens. Callers cannot tell these cases apart.
	ErrInvalidToken = errors.New("invalid token")

	ErrEndpointNotConfigured    = errors.New("endpoint not configured")
	ErrEnvironmentNotConfigured = errors.New("environment not configured")

	// ErrAccessDenied is returned when a webhook identifier is not on the
	// endpoint allow-list. It must be reported exactly like
	// ErrEndpointNotConfigured.
	ErrAccessDenied = errors.New("access denied")
)
