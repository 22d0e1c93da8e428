package sqlstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
	"github.com/ericfisherdev/sqlgate/internal/domain/sqlident"
)

// SQL Server error numbers the gateway reacts to.
const (
	mssqlInvalidColumn    = 207
	mssqlInvalidObject    = 208
	mssqlDeadlockVictim   = 1205
	mssqlIndexExists      = 1913
	mssqlObjectExists     = 2714
	mssqlSchemaExists     = 2759
	mssqlCannotOpenDB     = 4060
	mssqlResourceLimit    = 10928
	mssqlResourceBusy     = 10929
	mssqlServiceBusy      = 40501
	mssqlServiceError     = 40197
	mssqlDBUnavailable    = 40613
	mssqlElasticPoolBusy  = 49918
	mssqlElasticPoolLimit = 49919
	mssqlTooManyRequests  = 49920
)

type mssqlDialect struct{}

func (mssqlDialect) driverName() string { return "sqlserver" }

func (mssqlDialect) configure(db *sql.DB) {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
}

func (mssqlDialect) checkTable(_, _ string) error { return nil }

func (mssqlDialect) tableExists(schema, table string) (string, []any) {
	const query = `SELECT COUNT(1) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2`
	return query, []any{schema, table}
}

func (mssqlDialect) createTable(schema, table string) []string {
	qs := sqlident.QuoteBracket(schema)
	qt := qs + "." + sqlident.QuoteBracket(table)

	return []string{
		fmt.Sprintf(`IF SCHEMA_ID(N'%s') IS NULL EXEC(N'CREATE SCHEMA %s')`, schema, qs),
		fmt.Sprintf(`CREATE TABLE %s (
    %s BIGINT IDENTITY(1,1) NOT NULL PRIMARY KEY,
    %s NVARCHAR(255) NOT NULL,
    %s NVARCHAR(MAX) NOT NULL,
    %s DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
    %s BIT NOT NULL DEFAULT 0,
    %s DATETIME2 NULL
)`, qt, colID, colWebhookID, colPayload, colReceivedAt, colProcessed, colProcessedAt),
		fmt.Sprintf(`CREATE INDEX %s ON %s (%s)`, sqlident.QuoteBracket(mssqlIndexName(table, colWebhookID)), qt, colWebhookID),
		fmt.Sprintf(`CREATE INDEX %s ON %s (%s)`, sqlident.QuoteBracket(mssqlIndexName(table, colProcessed)), qt, colProcessed),
	}
}

// mssqlIndexName returns "IX_<table>_<column>". Names over the 128 character
// sysname limit keep a truncated table part plus a hash of the full table name,
// so long tables still get distinct, valid index names.
func mssqlIndexName(table, column string) string {
	name := "IX_" + table + "_" + column
	if len(name) <= sqlident.MaxLength {
		return name
	}

	sum := sha256.Sum256([]byte(table))
	suffix := "_" + hex.EncodeToString(sum[:4]) + "_" + column
	keep := sqlident.MaxLength - len("IX_") - len(suffix)
	return "IX_" + table[:keep] + suffix
}

func (mssqlDialect) insert(ctx context.Context, db *sql.DB, schema, table string, rec model.IngestedRecord) (int64, error) {
	query := fmt.Sprintf(
		`INSERT INTO %s.%s (%s, %s, %s) OUTPUT INSERTED.%s VALUES (@p1, @p2, @p3)`,
		sqlident.QuoteBracket(schema), sqlident.QuoteBracket(table),
		colWebhookID, colPayload, colReceivedAt, colID,
	)

	var id int64
	if err := db.QueryRowContext(ctx, query, rec.WebhookID, rec.Payload, rec.ReceivedAt.UTC()).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (mssqlDialect) selectRows(q model.ReadQuery) (string, []any) {
	order := "(SELECT NULL)"
	if len(q.OrderBy) > 0 {
		order = orderList(q.OrderBy, sqlident.QuoteBracket)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s.%s ORDER BY %s OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY`,
		columnList(q.Columns, sqlident.QuoteBracket),
		sqlident.QuoteBracket(q.Schema), sqlident.QuoteBracket(q.Object),
		order,
	)
	return query, []any{q.Skip, q.Top}
}

// sqlErrorNumber is implemented by go-mssqldb's mssql.Error.
type sqlErrorNumber interface {
	SQLErrorNumber() int32
}

func (mssqlDialect) classify(err error) error {
	if err == nil {
		return nil
	}

	var numbered sqlErrorNumber
	if errors.As(err, &numbered) {
		switch numbered.SQLErrorNumber() {
		case mssqlObjectExists, mssqlIndexExists, mssqlSchemaExists:
			return fmt.Errorf("%w: %w", driven.ErrObjectExists, err)
		case mssqlInvalidObject, mssqlInvalidColumn:
			return fmt.Errorf("%w: %w", driven.ErrObjectNotFound, err)
		case mssqlDeadlockVictim, mssqlCannotOpenDB, mssqlResourceLimit, mssqlResourceBusy,
			mssqlServiceBusy, mssqlServiceError, mssqlDBUnavailable,
			mssqlElasticPoolBusy, mssqlElasticPoolLimit, mssqlTooManyRequests:
			return fmt.Errorf("%w: %w", driven.ErrStoreUnavailable, err)
		}
		return err
	}

	return classifyCommon(err)
}
