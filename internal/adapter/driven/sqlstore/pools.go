package sqlstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.DatastoreProvider = (*Pools)(nil)
	_ driven.DestinationPinger = (*Pools)(nil)
)

// Pools keeps one Store per environment name for the life of the process.
// Stores are opened lazily on first use. Opening does no network I/O, so the
// lock is never held across a round trip to a database.
type Pools struct {
	mu     sync.Mutex
	stores map[string]*Store
	closed bool
}

// NewPools returns an empty pool registry.
func NewPools() *Pools {
	return &Pools{stores: make(map[string]*Store)}
}

// Datastore returns the Store for env, opening it on first use.
func (p *Pools) Datastore(_ context.Context, env model.EnvironmentBinding) (driven.Datastore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("datastore %s: pools closed: %w", env.Name, driven.ErrStoreUnavailable)
	}

	if s, ok := p.stores[env.Name]; ok {
		return s, nil
	}

	s, err := Open(env.Name, env.Driver, env.ConnectionString)
	if err != nil {
		return nil, err
	}
	p.stores[env.Name] = s
	return s, nil
}

// Ping checks every open pool and returns the combined failures.
func (p *Pools) Ping(ctx context.Context) error {
	p.mu.Lock()
	stores := make([]*Store, 0, len(p.stores))
	for _, s := range p.stores {
		stores = append(stores, s)
	}
	p.mu.Unlock()

	var result *multierror.Error
	for _, s := range stores {
		if err := s.Ping(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Len returns the number of open pools.
func (p *Pools) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stores)
}

// Close closes every pool. Later Datastore calls fail.
func (p *Pools) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var result *multierror.Error
	for name, s := range p.stores {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", name, err))
		}
	}
	p.stores = make(map[string]*Store)
	return result.ErrorOrNil()
}
