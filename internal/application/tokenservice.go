package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/hashicorp/go-secure-stdlib/base62"
	"golang.org/x/crypto/pbkdf2"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

// Token format: "sgt_" followed by 40 base62 characters (~238 bits). The
// first 8 random characters are stored in clear as a lookup prefix.
const (
	TokenScheme       = "sgt_"
	tokenRandomLength = 40
	tokenPrefixLength = 8
	saltLength        = 16
	hashLength        = 32

	// DefaultKDFIterations is the PBKDF2 work factor for new credentials.
	DefaultKDFIterations = 100_000
)

var (
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@-]{0,127}$`)
	tokenPattern = regexp.MustCompile(`^sgt_[A-Za-z0-9]{40}$`)
)

// TokenService issues, verifies and revokes bearer tokens. Only salted
// PBKDF2 hashes reach the CredentialStore.
type TokenService struct {
	store      driven.CredentialStore
	artifacts  driven.TokenArtifacts
	iterations int
	logger     *slog.Logger

	random func(int) (string, error)
}

// NewTokenService creates a TokenService. artifacts may be nil, in which case
// issued tokens are only returned to the caller. iterations <= 0 selects
// DefaultKDFIterations.
func NewTokenService(store driven.CredentialStore, artifacts driven.TokenArtifacts, iterations int, logger *slog.Logger) *TokenService {
	if iterations <= 0 {
		iterations = DefaultKDFIterations
	}
	return &TokenService{
		store:      store,
		artifacts:  artifacts,
		iterations: iterations,
		logger:     logger,
		random:     base62.Random,
	}
}

// Issue creates a credential for owner and returns the plaintext token. This
// is the only time the token is available.
func (s *TokenService) Issue(ctx context.Context, owner string) (model.IssuedToken, error) {
	if !ownerPattern.MatchString(owner) {
		return model.IssuedToken{}, fmt.Errorf("owner %q: %w", owner, ErrInvalidInput)
	}

	random, err := s.random(tokenRandomLength)
	if err != nil {
		return model.IssuedToken{}, fmt.Errorf("generate token: %w", err)
	}
	token := TokenScheme + random

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return model.IssuedToken{}, fmt.Errorf("generate salt: %w", err)
	}

	cred, err := s.store.Create(ctx, model.Credential{
		Owner:      owner,
		Prefix:     random[:tokenPrefixLength],
		Hash:       deriveHash(token, salt, s.iterations),
		Salt:       salt,
		Iterations: s.iterations,
	})
	if err != nil {
		return model.IssuedToken{}, fmt.Errorf("issue token: %w", err)
	}

	if s.artifacts != nil {
		if err := s.artifacts.Write(owner, token); err != nil {
			s.logger.Warn("token artifact not written", "owner", owner, "credential_id", cred.ID, "error", err)
		}
	}

	s.logger.Info("token issued", "owner", owner, "credential_id", cred.ID, "prefix", cred.Prefix)

	return model.IssuedToken{CredentialInfo: cred.Info(), Token: token}, nil
}

// Authenticate resolves a presented token to its principal. Malformed tokens
// are rejected before any storage access.
func (s *TokenService) Authenticate(ctx context.Context, token string) (model.Principal, error) {
	if !tokenPattern.MatchString(token) {
		return model.Principal{}, ErrInvalidToken
	}

	prefix := token[len(TokenScheme) : len(TokenScheme)+tokenPrefixLength]
	candidates, err := s.store.FindByPrefix(ctx, prefix)
	if err != nil {
		return model.Principal{}, fmt.Errorf("authenticate: %w", err)
	}

	for _, cred := range candidates {
		if cred.Iterations <= 0 {
			continue
		}
		if subtle.ConstantTimeCompare(deriveHash(token, cred.Salt, cred.Iterations), cred.Hash) == 1 {
			return model.Principal{CredentialID: cred.ID, Owner: cred.Owner}, nil
		}
	}

	return model.Principal{}, ErrInvalidToken
}

// List returns every active credential without secret material.
func (s *TokenService) List(ctx context.Context) ([]model.CredentialInfo, error) {
	creds, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}

	infos := make([]model.CredentialInfo, len(creds))
	for i, c := range creds {
		infos[i] = c.Info()
	}
	return infos, nil
}

// Revoke deletes credential id. The token stops authenticating as soon as the
// row is gone; the owner's artifact is then removed best-effort. The artifact
// only ever holds the newest token, so it is removed even when the owner keeps
// other credentials. Returns false for an unknown id.
func (s *TokenService) Revoke(ctx context.Context, id int64) (bool, error) {
	cred, err := s.store.Get(ctx, id)
	if errors.Is(err, driven.ErrCredentialNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revoke token %d: %w", id, err)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, driven.ErrCredentialNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("revoke token %d: %w", id, err)
	}

	s.logger.Info("token revoked", "owner", cred.Owner, "credential_id", id)

	if s.artifacts != nil {
		if err := s.artifacts.Remove(cred.Owner); err != nil {
			s.logger.Warn("token artifact not removed", "owner", cred.Owner, "credential_id", id, "error", err)
		}
	}

	return true, nil
}

func deriveHash(token string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(token), salt, iterations, hashLength, sha256.New)
}
