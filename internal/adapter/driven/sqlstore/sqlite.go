package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
	"github.com/ericfisherdev/sqlgate/internal/domain/sqlident"
)

// sqliteDialect backs local and test environments. SQLite has no schemas, so
// schema and table are folded into a single table name "<schema>__<table>".
// Parts may not contain "__" or start or end with "_", which keeps the fold
// unambiguous: ("a_b", "c") and ("a", "b_c") stay distinct tables.
type sqliteDialect struct{}

func (sqliteDialect) driverName() string { return "sqlite" }

// configure serializes all access through one connection, as the control
// database writer does; concurrent creators then queue instead of failing
// with SQLITE_BUSY.
func (sqliteDialect) configure(db *sql.DB) {
	db.SetMaxOpenConns(1)
}

const sqlitePartSep = "__"

// quoteParts validates each part and quotes their separator join. The join
// keeps the identifier alphabet, so the result is safe even when it exceeds
// sqlident.MaxLength.
func quoteParts(parts ...string) string {
	for _, p := range parts {
		if !sqlident.Valid(p) || !foldable(p) {
			panic(fmt.Sprintf("sqlstore: unvalidated identifier %q", p))
		}
	}
	return `"` + strings.Join(parts, sqlitePartSep) + `"`
}

func foldable(part string) bool {
	return !strings.Contains(part, sqlitePartSep) &&
		!strings.HasPrefix(part, "_") && !strings.HasSuffix(part, "_")
}

func (sqliteDialect) checkTable(schema, table string) error {
	for _, part := range []struct{ kind, name string }{{"schema", schema}, {"table", table}} {
		if !foldable(part.name) {
			return fmt.Errorf("%s %q: leading, trailing or doubled underscore: %w",
				part.kind, part.name, sqlident.ErrInvalidIdentifier)
		}
	}
	return nil
}

func (sqliteDialect) tableExists(schema, table string) (string, []any) {
	const query = `SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`
	return query, []any{schema + sqlitePartSep + table}
}

func (sqliteDialect) createTable(schema, table string) []string {
	qt := quoteParts(schema, table)

	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
    %s INTEGER PRIMARY KEY AUTOINCREMENT,
    %s TEXT NOT NULL,
    %s TEXT NOT NULL,
    %s TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ', 'now')),
    %s INTEGER NOT NULL DEFAULT 0,
    %s TEXT NULL
)`, qt, colID, colWebhookID, colPayload, colReceivedAt, colProcessed, colProcessedAt),
		fmt.Sprintf(`CREATE INDEX %s ON %s (%s)`, quoteParts("IX", schema, table, colWebhookID), qt, colWebhookID),
		fmt.Sprintf(`CREATE INDEX %s ON %s (%s)`, quoteParts("IX", schema, table, colProcessed), qt, colProcessed),
	}
}

func (sqliteDialect) insert(ctx context.Context, db *sql.DB, schema, table string, rec model.IngestedRecord) (int64, error) {
	query := fmt.Sprintf(
		`INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)`,
		quoteParts(schema, table), colWebhookID, colPayload, colReceivedAt,
	)

	res, err := db.ExecContext(ctx, query, rec.WebhookID, rec.Payload, rec.ReceivedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (sqliteDialect) selectRows(q model.ReadQuery) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT %s FROM %s`, columnList(q.Columns, sqlident.QuoteANSI), quoteParts(q.Schema, q.Object))
	if len(q.OrderBy) > 0 {
		fmt.Fprintf(&b, ` ORDER BY %s`, orderList(q.OrderBy, sqlident.QuoteANSI))
	}
	b.WriteString(` LIMIT ? OFFSET ?`)
	return b.String(), []any{q.Top, q.Skip}
}

func (sqliteDialect) classify(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", driven.ErrStoreUnavailable, err)
		case sqlite3.SQLITE_ERROR:
			msg := sqliteErr.Error()
			switch {
			case strings.Contains(msg, "already exists"):
				return fmt.Errorf("%w: %w", driven.ErrObjectExists, err)
			case strings.Contains(msg, "no such table"), strings.Contains(msg, "no such column"):
				return fmt.Errorf("%w: %w", driven.ErrObjectNotFound, err)
			}
		}
		return err
	}

	return classifyCommon(err)
}
