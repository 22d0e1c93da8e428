package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
)

// ErrCredentialNotFound is returned by CredentialStore.Get and Delete when no
// credential has the given ID.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore defines the driven port for durable credential records.
// Implementations never see plaintext tokens, only derived hashes and salts.
type CredentialStore interface {
	// Create persists a new credential and returns it with ID and IssuedAt set.
	Create(ctx context.Context, cred model.Credential) (model.Credential, error)

	// Get returns the credential with the given ID or ErrCredentialNotFound.
	Get(ctx context.Context, id int64) (model.Credential, error)

	// FindByPrefix returns every credential whose token prefix equals prefix.
	FindByPrefix(ctx context.Context, prefix string) ([]model.Credential, error)

	// List returns all credentials ordered by ID.
	List(ctx context.Context) ([]model.Credential, error)

	// Delete removes the credential with the given ID.
	// Returns ErrCredentialNotFound if it does not exist.
	Delete(ctx context.Context, id int64) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// TokenArtifacts is the out-of-band side channel that hands a freshly issued
// token to its owner. It is advisory only: the CredentialStore is the source
// of truth for authentication.
type TokenArtifacts interface {
	Write(owner, token string) error
	Remove(owner string) error
}
