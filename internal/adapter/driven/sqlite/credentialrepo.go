package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Every database failure is reported wrapped in driven.ErrStoreUnavailable so
// the gateway answers 503 instead of guessing at authentication.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// Create inserts cred and returns it with the generated ID. IssuedAt defaults
// to the current UTC time when zero.
func (r *CredentialRepo) Create(ctx context.Context, cred model.Credential) (model.Credential, error) {
	const query = `INSERT INTO credentials (owner, prefix, hash, salt, iterations, issued_at) VALUES (?, ?, ?, ?, ?, ?)`

	if cred.IssuedAt.IsZero() {
		cred.IssuedAt = time.Now().UTC()
	}

	res, err := r.db.Writer.ExecContext(ctx, query,
		cred.Owner, cred.Prefix, cred.Hash, cred.Salt, cred.Iterations,
		cred.IssuedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return model.Credential{}, storeErr("create credential for "+cred.Owner, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Credential{}, storeErr("credential id", err)
	}
	cred.ID = id
	return cred, nil
}

// Get returns the credential with the given ID.
func (r *CredentialRepo) Get(ctx context.Context, id int64) (model.Credential, error) {
	const query = `SELECT id, owner, prefix, hash, salt, iterations, issued_at FROM credentials WHERE id = ?`

	cred, err := scanCredential(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credential{}, fmt.Errorf("get credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	if err != nil {
		return model.Credential{}, storeErr(fmt.Sprintf("get credential %d", id), err)
	}
	return cred, nil
}

// FindByPrefix returns the credentials sharing a token prefix. Prefixes are
// random, so this is almost always zero or one row.
func (r *CredentialRepo) FindByPrefix(ctx context.Context, prefix string) ([]model.Credential, error) {
	const query = `SELECT id, owner, prefix, hash, salt, iterations, issued_at FROM credentials WHERE prefix = ? ORDER BY id`
	return r.query(ctx, "find credentials by prefix", query, prefix)
}

// List returns all credentials ordered by ID.
func (r *CredentialRepo) List(ctx context.Context) ([]model.Credential, error) {
	const query = `SELECT id, owner, prefix, hash, salt, iterations, issued_at FROM credentials ORDER BY id`
	return r.query(ctx, "list credentials", query)
}

// Delete removes the credential with the given ID.
func (r *CredentialRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM credentials WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return storeErr(fmt.Sprintf("delete credential %d", id), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storeErr(fmt.Sprintf("delete credential %d", id), err)
	}
	if rows == 0 {
		return fmt.Errorf("delete credential %d: %w", id, driven.ErrCredentialNotFound)
	}
	return nil
}

// Ping checks the reader connection.
func (r *CredentialRepo) Ping(ctx context.Context) error {
	if err := r.db.Reader.PingContext(ctx); err != nil {
		return storeErr("ping credential store", err)
	}
	return nil
}

func (r *CredentialRepo) query(ctx context.Context, op, query string, args ...any) ([]model.Credential, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}

	return creds, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (model.Credential, error) {
	var cred model.Credential
	var issuedAt string
	if err := row.Scan(&cred.ID, &cred.Owner, &cred.Prefix, &cred.Hash, &cred.Salt, &cred.Iterations, &issuedAt); err != nil {
		return model.Credential{}, err
	}

	t, err := parseTime(issuedAt)
	if err != nil {
		return model.Credential{}, fmt.Errorf("parse issued_at for credential %d: %w", cred.ID, err)
	}
	cred.IssuedAt = t
	return cred, nil
}

// storeErr marks err as a store failure while keeping the driver error in the chain.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, driven.ErrStoreUnavailable, err)
}

// parseTime accepts the formats SQLite and Go commonly produce for timestamps.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
