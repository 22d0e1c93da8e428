package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
	"github.com/ericfisherdev/sqlgate/internal/domain/sqlident"
)

// Paging bounds for read queries.
const (
	DefaultTop = 100
	MaxTop     = 1000
)

// ReadOptions are the supported query options of a read request.
type ReadOptions struct {
	Select  []string
	OrderBy []model.OrderTerm
	Top     int
	Skip    int
}

// ParseReadOptions parses $select, $orderby, $top and $skip. Any other
// "$"-prefixed parameter is rejected; plain parameters are ignored. $top
// above MaxTop is clamped.
func ParseReadOptions(values url.Values) (ReadOptions, error) {
	opts := ReadOptions{Top: DefaultTop}

	for key, vals := range values {
		if !strings.HasPrefix(key, "$") {
			continue
		}
		if len(vals) != 1 {
			return ReadOptions{}, fmt.Errorf("option %s given more than once: %w", key, ErrInvalidInput)
		}
		v := strings.TrimSpace(vals[0])

		var err error
		switch key {
		case "$select":
			opts.Select, err = parseSelect(v)
		case "$orderby":
			opts.OrderBy, err = parseOrderBy(v)
		case "$top":
			opts.Top, err = parseCount(key, v)
			if opts.Top > MaxTop {
				opts.Top = MaxTop
			}
		case "$skip":
			opts.Skip, err = parseCount(key, v)
		default:
			err = fmt.Errorf("unsupported option %s: %w", key, ErrInvalidInput)
		}
		if err != nil {
			return ReadOptions{}, err
		}
	}

	return opts, nil
}

func parseSelect(v string) ([]string, error) {
	if v == "" || v == "*" {
		return nil, nil
	}

	parts := strings.Split(v, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		col := strings.TrimSpace(p)
		if err := sqlident.Validate("column", col); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func parseOrderBy(v string) ([]model.OrderTerm, error) {
	if v == "" {
		return nil, nil
	}

	parts := strings.Split(v, ",")
	terms := make([]model.OrderTerm, 0, len(parts))
	for _, p := range parts {
		fields := strings.Fields(p)
		if len(fields) == 0 || len(fields) > 2 {
			return nil, fmt.Errorf("$orderby term %q: %w", p, ErrInvalidInput)
		}

		term := model.OrderTerm{Column: fields[0]}
		if err := sqlident.Validate("column", term.Column); err != nil {
			return nil, err
		}
		if len(fields) == 2 {
			switch strings.ToLower(fields[1]) {
			case "asc":
			case "desc":
				term.Descending = true
			default:
				return nil, fmt.Errorf("$orderby direction %q: %w", fields[1], ErrInvalidInput)
			}
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func parseCount(key, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer: %w", key, ErrInvalidInput)
	}
	return n, nil
}

// ReadService selects rows from the object behind a configured endpoint.
type ReadService struct {
	environments *EnvironmentResolver
	endpoints    *EndpointResolver
	datastores   driven.DatastoreProvider
}

// NewReadService wires a ReadService.
func NewReadService(environments *EnvironmentResolver, endpoints *EndpointResolver, datastores driven.DatastoreProvider) *ReadService {
	return &ReadService{environments: environments, endpoints: endpoints, datastores: datastores}
}

// Read returns rows from endpoint in environment. A missing table is reported
// as ErrEndpointNotConfigured; a missing column as ErrInvalidInput.
func (s *ReadService) Read(ctx context.Context, environment, endpoint string, opts ReadOptions) ([]map[string]any, error) {
	env, err := s.environments.Resolve(ctx, environment)
	if err != nil {
		return nil, err
	}

	cfg, err := s.endpoints.Resolve(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	if err := sqlident.Validate("schema", cfg.Schema); err != nil {
		return nil, err
	}
	if err := sqlident.Validate("object", cfg.Object); err != nil {
		return nil, err
	}

	ds, err := s.datastores.Datastore(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("datastore %q: %w", env.Name, err)
	}

	rows, err := ds.Select(ctx, model.ReadQuery{
		Schema:  cfg.Schema,
		Object:  cfg.Object,
		Columns: opts.Select,
		OrderBy: opts.OrderBy,
		Top:     opts.Top,
		Skip:    opts.Skip,
	})
	if errors.Is(err, driven.ErrObjectNotFound) {
		if len(opts.Select) == 0 && len(opts.OrderBy) == 0 {
			return nil, fmt.Errorf("endpoint %q: %w", endpoint, ErrEndpointNotConfigured)
		}
		return nil, fmt.Errorf("endpoint %q: unknown column: %w", endpoint, ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", endpoint, err)
	}

	return rows, nil
}
