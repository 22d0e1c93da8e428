package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
)

// Ingestion table columns, shared by every dialect.
const (
	colID          = "Id"
	colWebhookID   = "WebhookId"
	colPayload     = "Payload"
	colReceivedAt  = "ReceivedAt"
	colProcessed   = "Processed"
	colProcessedAt = "ProcessedAt"
)

// dialect isolates the SQL that differs between database engines. Every
// schema, table and column name it receives has already passed sqlident.Valid
// and checkTable.
type dialect interface {
	driverName() string
	configure(db *sql.DB)
	// checkTable applies engine-specific naming rules beyond sqlident.Valid.
	checkTable(schema, table string) error
	tableExists(schema, table string) (string, []any)
	createTable(schema, table string) []string
	insert(ctx context.Context, db *sql.DB, schema, table string, rec model.IngestedRecord) (int64, error)
	selectRows(q model.ReadQuery) (string, []any)
	classify(err error) error
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "", model.DriverSQLServer:
		return mssqlDialect{}, nil
	case model.DriverSQLite:
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// SupportedDriver reports whether driver names a dialect this package implements.
func SupportedDriver(driver string) bool {
	_, err := dialectFor(driver)
	return err == nil
}

func columnList(columns []string, quote func(string) string) string {
	if len(columns) == 0 {
		return "*"
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
	}
	return strings.Join(quoted, ", ")
}

func orderList(terms []model.OrderTerm, quote func(string) string) string {
	parts := make([]string, len(terms))
	for i, term := range terms {
		dir := "ASC"
		if term.Descending {
			dir = "DESC"
		}
		parts[i] = quote(term.Column) + " " + dir
	}
	return strings.Join(parts, ", ")
}
