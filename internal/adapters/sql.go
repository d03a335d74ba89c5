package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourusername/queryweaver/models"
)

// SQLAdapter is the adapter registered for the sql source type. It routes
// each source to a Postgres or SQLite backend based on its DSN, so both
// engines sit behind the one registration the type system allows.
type SQLAdapter struct {
	postgres *PostgresAdapter
	sqlite   *SQLiteAdapter
	backends map[string]Adapter
}

// isPostgresDSN reports whether a DSN addresses a Postgres server
func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// NewSQLAdapter splits the configured sql sources by DSN and opens the
// matching backends
func NewSQLAdapter(ctx context.Context, sources []Source) (*SQLAdapter, error) {
	var pgSources, liteSources []Source
	for _, src := range sources {
		if isPostgresDSN(src.DSN) {
			pgSources = append(pgSources, src)
		} else {
			liteSources = append(liteSources, src)
		}
	}

	a := &SQLAdapter{backends: make(map[string]Adapter)}

	if len(pgSources) > 0 {
		postgres, err := NewPostgresAdapter(ctx, pgSources)
		if err != nil {
			return nil, err
		}
		a.postgres = postgres
		for _, src := range pgSources {
			a.backends[src.ID] = postgres
		}
	}

	if len(liteSources) > 0 {
		sqlite, err := NewSQLiteAdapter(liteSources)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.sqlite = sqlite
		for _, src := range liteSources {
			a.backends[src.ID] = sqlite
		}
	}

	return a, nil
}

func (a *SQLAdapter) backend(sourceID string) (Adapter, error) {
	backend, ok := a.backends[sourceID]
	if !ok {
		return nil, fmt.Errorf("sql source not configured: %s", sourceID)
	}
	return backend, nil
}

// Execute routes the operation to its source's backend
func (a *SQLAdapter) Execute(ctx context.Context, op *models.Operation) (*models.QueryResult, error) {
	backend, err := a.backend(op.SourceID)
	if err != nil {
		return nil, err
	}
	return backend.Execute(ctx, op)
}

// Describe routes the schema request to the source's backend
func (a *SQLAdapter) Describe(ctx context.Context, sourceID string) (*models.SourceSchema, error) {
	backend, err := a.backend(sourceID)
	if err != nil {
		return nil, err
	}
	return backend.Describe(ctx, sourceID)
}

// Close closes both backends
func (a *SQLAdapter) Close() error {
	var firstErr error
	if a.postgres != nil {
		if err := a.postgres.Close(); err != nil {
			firstErr = err
		}
	}
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
