// Package sqlstore implements the Datastore port over database/sql for the
// destination databases that environments route to.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
	"github.com/ericfisherdev/sqlgate/internal/domain/sqlident"
)

// Compile-time interface satisfaction check.
var _ driven.Datastore = (*Store)(nil)

// Store is a Datastore bound to one environment's database pool.
type Store struct {
	name    string
	db      *sql.DB
	dialect dialect
}

// Open creates the connection pool for an environment. No connection is
// made until the first query.
func Open(name, driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	d.configure(db)

	return &Store{name: name, db: db, dialect: d}, nil
}

// Name returns the environment name the store was opened for.
func (s *Store) Name() string {
	return s.name
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.name, s.dialect.classify(err))
	}
	return nil
}

// TableExists reports whether schema.table is present.
func (s *Store) TableExists(ctx context.Context, schema, table string) (bool, error) {
	if err := s.validateTable(schema, table); err != nil {
		return false, err
	}

	query, args := s.dialect.tableExists(schema, table)
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("table exists %s.%s: %w", schema, table, s.dialect.classify(err))
	}
	return n > 0, nil
}

// CreateTable creates the ingestion table and its indexes in one transaction,
// so a concurrent reader never sees the table without them.
func (s *Store) CreateTable(ctx context.Context, schema, table string) error {
	if err := s.validateTable(schema, table); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create table %s.%s: begin: %w", schema, table, s.dialect.classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range s.dialect.createTable(schema, table) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s.%s: %w", schema, table, s.dialect.classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create table %s.%s: commit: %w", schema, table, s.dialect.classify(err))
	}
	return nil
}

// InsertRecord appends rec to schema.table and returns its generated ID.
func (s *Store) InsertRecord(ctx context.Context, schema, table string, rec model.IngestedRecord) (int64, error) {
	if err := s.validateTable(schema, table); err != nil {
		return 0, err
	}

	id, err := s.dialect.insert(ctx, s.db, schema, table, rec)
	if err != nil {
		return 0, fmt.Errorf("insert into %s.%s: %w", schema, table, s.dialect.classify(err))
	}
	return id, nil
}

// Select runs q and returns each row keyed by column name. Byte slices are
// returned as strings so rows encode as JSON text.
func (s *Store) Select(ctx context.Context, q model.ReadQuery) ([]map[string]any, error) {
	if err := s.validateQuery(q); err != nil {
		return nil, err
	}

	query, args := s.dialect.selectRows(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s.%s: %w", q.Schema, q.Object, s.dialect.classify(err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("select columns: %w", err)
	}

	result := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("select scan: %w", s.dialect.classify(err))
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select rows: %w", s.dialect.classify(err))
	}
	return result, nil
}

func (s *Store) validateTable(schema, table string) error {
	if err := sqlident.Validate("schema", schema); err != nil {
		return err
	}
	if err := sqlident.Validate("table", table); err != nil {
		return err
	}
	return s.dialect.checkTable(schema, table)
}

func (s *Store) validateQuery(q model.ReadQuery) error {
	if err := s.validateTable(q.Schema, q.Object); err != nil {
		return err
	}
	for _, c := range q.Columns {
		if err := sqlident.Validate("column", c); err != nil {
			return err
		}
	}
	for _, o := range q.OrderBy {
		if err := sqlident.Validate("column", o.Column); err != nil {
			return err
		}
	}
	if q.Top < 0 || q.Skip < 0 {
		return fmt.Errorf("negative paging: top=%d skip=%d", q.Top, q.Skip)
	}
	return nil
}
