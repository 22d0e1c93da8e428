package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

func newCredential(owner, prefix string) model.Credential {
	return model.Credential{
		Owner:      owner,
		Prefix:     prefix,
		Hash:       []byte("hash-" + owner),
		Salt:       []byte("salt-" + owner),
		Iterations: 10000,
	}
}

func TestCredentialRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	issued := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	cred := newCredential("alice", "AbCd1234")
	cred.IssuedAt = issued

	created, err := repo.Create(ctx, cred)
	require.NoError(t, err)
	assert.Positive(t, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, "AbCd1234", got.Prefix)
	assert.Equal(t, []byte("hash-alice"), got.Hash)
	assert.Equal(t, []byte("salt-alice"), got.Salt)
	assert.Equal(t, 10000, got.Iterations)
	assert.True(t, issued.Equal(got.IssuedAt))
}

func TestCredentialRepo_CreateDefaultsIssuedAt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	before := time.Now().UTC().Add(-time.Second)
	created, err := repo.Create(context.Background(), newCredential("bob", "prefix01"))
	require.NoError(t, err)
	assert.True(t, created.IssuedAt.After(before))
}

func TestCredentialRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	_, err := repo.Get(context.Background(), 999)
	require.ErrorIs(t, err, driven.ErrCredentialNotFound)
	assert.NotErrorIs(t, err, driven.ErrStoreUnavailable)
}

func TestCredentialRepo_FindByPrefix(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, newCredential("alice", "aaaa1111"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newCredential("bob", "bbbb2222"))
	require.NoError(t, err)

	found, err := repo.FindByPrefix(ctx, "bbbb2222")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "bob", found[0].Owner)

	none, err := repo.FindByPrefix(ctx, "zzzz9999")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCredentialRepo_ListOrderedByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	for _, owner := range []string{"carol", "alice", "bob"} {
		_, err := repo.Create(ctx, newCredential(owner, owner+"0000"))
		require.NoError(t, err)
	}

	creds, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 3)
	assert.Equal(t, "carol", creds[0].Owner)
	assert.Equal(t, "alice", creds[1].Owner)
	assert.Equal(t, "bob", creds[2].Owner)
	assert.Less(t, creds[0].ID, creds[1].ID)
}

func TestCredentialRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, newCredential("alice", "aaaa1111"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))

	_, err = repo.Get(ctx, created.ID)
	require.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_DeleteNonexistent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)

	err := repo.Delete(context.Background(), 42)
	require.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_ClosedDBIsStoreUnavailable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db)
	require.NoError(t, db.Close())

	_, err := repo.List(context.Background())
	require.ErrorIs(t, err, driven.ErrStoreUnavailable)

	err = repo.Ping(context.Background())
	require.ErrorIs(t, err, driven.ErrStoreUnavailable)
}
