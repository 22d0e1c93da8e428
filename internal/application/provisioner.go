package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
	"github.com/ericfisherdev/sqlgate/internal/domain/sqlident"
)

// Provisioner creates ingestion tables on first use. Tables it has seen are
// remembered per environment so later requests skip the metadata query.
type Provisioner struct {
	ensured sync.Map // tableKey -> struct{}
	logger  *slog.Logger
}

type tableKey struct {
	environment string
	schema      string
	table       string
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(logger *slog.Logger) *Provisioner {
	return &Provisioner{logger: logger}
}

// EnsureTable makes sure schema.table exists in ds. Losing a creation race to
// a concurrent caller counts as success.
func (p *Provisioner) EnsureTable(ctx context.Context, ds driven.Datastore, schema, table string) error {
	if err := sqlident.Validate("schema", schema); err != nil {
		return err
	}
	if err := sqlident.Validate("table", table); err != nil {
		return err
	}

	key := tableKey{environment: ds.Name(), schema: schema, table: table}
	if _, ok := p.ensured.Load(key); ok {
		return nil
	}

	exists, err := ds.TableExists(ctx, schema, table)
	if err != nil {
		return fmt.Errorf("ensure table %s.%s: %w", schema, table, err)
	}

	if !exists {
		err := ds.CreateTable(ctx, schema, table)
		switch {
		case err == nil:
			p.logger.Info("table provisioned", "environment", ds.Name(), "schema", schema, "table", table)
		case errors.Is(err, driven.ErrObjectExists):
			// Another request created it first.
		default:
			return fmt.Errorf("ensure table %s.%s: %w", schema, table, err)
		}
	}

	p.ensured.Store(key, struct{}{})
	return nil
}
