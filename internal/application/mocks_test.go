package application_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- CredentialStore ---

type mockCredentialStore struct {
	mu          sync.Mutex
	nextID      int64
	creds       map[int64]model.Credential
	findCalls   int
	findErr     error
	pingErr     error
	createCalls int
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{creds: make(map[int64]model.Credential)}
}

func (m *mockCredentialStore) Create(_ context.Context, cred model.Credential) (model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	m.nextID++
	cred.ID = m.nextID
	cred.IssuedAt = time.Now().UTC()
	m.creds[cred.ID] = cred
	return cred, nil
}

func (m *mockCredentialStore) Get(_ context.Context, id int64) (model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[id]
	if !ok {
		return model.Credential{}, driven.ErrCredentialNotFound
	}
	return c, nil
}

func (m *mockCredentialStore) FindByPrefix(_ context.Context, prefix string) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []model.Credential
	for _, c := range m.creds {
		if c.Prefix == prefix {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCredentialStore) List(_ context.Context) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Credential, 0, len(m.creds))
	for _, c := range m.creds {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockCredentialStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[id]; !ok {
		return driven.ErrCredentialNotFound
	}
	delete(m.creds, id)
	return nil
}

func (m *mockCredentialStore) Ping(_ context.Context) error {
	return m.pingErr
}

// --- TokenArtifacts ---

type mockArtifacts struct {
	mu       sync.Mutex
	files    map[string]string
	writeErr error
	removed  []string
}

func newMockArtifacts() *mockArtifacts {
	return &mockArtifacts{files: make(map[string]string)}
}

func (m *mockArtifacts) Write(owner, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.files[owner] = token
	return nil
}

func (m *mockArtifacts) Remove(owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, owner)
	m.removed = append(m.removed, owner)
	return nil
}

// --- Configuration sources ---

type mockEndpointSource struct {
	mu        sync.Mutex
	endpoints map[string]model.EndpointConfig
	calls     int
}

func (m *mockEndpointSource) LoadEndpoint(_ context.Context, name string) (model.EndpointConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	cfg, ok := m.endpoints[name]
	if !ok {
		return model.EndpointConfig{}, driven.ErrNotFound
	}
	return cfg, nil
}

func (m *mockEndpointSource) set(name string, cfg model.EndpointConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endpoints == nil {
		m.endpoints = make(map[string]model.EndpointConfig)
	}
	m.endpoints[name] = cfg
}

type mockEnvironmentSource struct {
	environments map[string]model.EnvironmentBinding
}

func (m *mockEnvironmentSource) LoadEnvironment(_ context.Context, name string) (model.EnvironmentBinding, error) {
	env, ok := m.environments[name]
	if !ok {
		return model.EnvironmentBinding{}, driven.ErrNotFound
	}
	return env, nil
}

// --- Datastore ---

type insertCall struct {
	Schema string
	Table  string
	Record model.IngestedRecord
}

type mockDatastore struct {
	mu          sync.Mutex
	name        string
	tables      map[string]bool
	existsCalls int
	createCalls int
	createErr   error
	inserts     []insertCall
	selectQuery model.ReadQuery
	selectRows  []map[string]any
	selectErr   error
}

func newMockDatastore(name string) *mockDatastore {
	return &mockDatastore{name: name, tables: make(map[string]bool)}
}

func (m *mockDatastore) Name() string { return m.name }

func (m *mockDatastore) TableExists(_ context.Context, schema, table string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	return m.tables[schema+"."+table], nil
}

func (m *mockDatastore) CreateTable(_ context.Context, schema, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	m.tables[schema+"."+table] = true
	return nil
}

func (m *mockDatastore) InsertRecord(_ context.Context, schema, table string, rec model.IngestedRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts = append(m.inserts, insertCall{Schema: schema, Table: table, Record: rec})
	return int64(len(m.inserts)), nil
}

func (m *mockDatastore) Select(_ context.Context, q model.ReadQuery) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectQuery = q
	return m.selectRows, m.selectErr
}

type mockProvider struct {
	stores map[string]*mockDatastore
}

func (m *mockProvider) Datastore(_ context.Context, env model.EnvironmentBinding) (driven.Datastore, error) {
	ds, ok := m.stores[env.Name]
	if !ok {
		return nil, driven.ErrStoreUnavailable
	}
	return ds, nil
}
