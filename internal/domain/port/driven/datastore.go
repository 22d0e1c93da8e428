package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
)

// Sentinel errors returned by Datastore implementations. Driver errors are
// classified into these at the adapter boundary.
var (
	// ErrStoreUnavailable marks timeouts, dropped connections and other
	// conditions a caller may retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrObjectExists indicates a CREATE lost a race with a concurrent creator.
	ErrObjectExists = errors.New("object already exists")

	// ErrObjectNotFound indicates a query named a table or column that does
	// not exist in the destination database.
	ErrObjectNotFound = errors.New("object not found")
)

// Datastore is a single destination database. Schema and table arguments
// must already have passed sqlident.Valid.
type Datastore interface {
	// Name identifies the environment the datastore belongs to.
	Name() string

	TableExists(ctx context.Context, schema, table string) (bool, error)

	// CreateTable creates the ingestion table and its two indexes atomically.
	// Returns ErrObjectExists if another creator won the race.
	CreateTable(ctx context.Context, schema, table string) error

	// InsertRecord inserts rec and returns the generated ID.
	InsertRecord(ctx context.Context, schema, table string, rec model.IngestedRecord) (int64, error)

	// Select runs a read query and returns each row as a column->value map.
	Select(ctx context.Context, q model.ReadQuery) ([]map[string]any, error)
}

// DatastoreProvider opens (or reuses) the datastore for an environment.
type DatastoreProvider interface {
	Datastore(ctx context.Context, env model.EnvironmentBinding) (Datastore, error)
}

// DestinationPinger checks the destination databases opened so far.
type DestinationPinger interface {
	Ping(ctx context.Context) error
}
