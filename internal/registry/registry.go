// Package registry provides read-only schema discovery for plan
// validation. The registry is shared across sessions and safe for
// concurrent reads; no session ever mutates schema.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/yourusername/queryweaver/internal/adapters"
	"github.com/yourusername/queryweaver/models"
)

// SchemaRegistry confirms that sources, tables/collections and columns
// exist. Passed explicitly into validation and execution so tests can
// substitute fakes.
type SchemaRegistry interface {
	Describe(ctx context.Context, sourceID string) (*models.SourceSchema, error)
}

// Static is an in-memory schema registry, used by tests and offline
// validation
type Static struct {
	schemas map[string]*models.SourceSchema
}

// NewStatic creates a registry over fixed schema descriptions
func NewStatic(schemas ...*models.SourceSchema) *Static {
	s := &Static{schemas: make(map[string]*models.SourceSchema, len(schemas))}
	for _, schema := range schemas {
		s.schemas[schema.SourceID] = schema
	}
	return s
}

// Describe returns the fixed description of a source
func (s *Static) Describe(_ context.Context, sourceID string) (*models.SourceSchema, error) {
	schema, ok := s.schemas[sourceID]
	if !ok {
		return nil, fmt.Errorf("source not registered: %s", sourceID)
	}
	return schema, nil
}

// Live answers schema queries by delegating to the adapter registry,
// memoizing descriptions per source. Descriptions are discovered once
// and reused: schema is read-only from this subsystem's perspective.
type Live struct {
	adapters *adapters.Registry

	mu    sync.RWMutex
	cache map[string]*models.SourceSchema
}

// NewLive creates a registry over live source adapters
func NewLive(reg *adapters.Registry) *Live {
	return &Live{
		adapters: reg,
		cache:    make(map[string]*models.SourceSchema),
	}
}

// Describe returns the schema of a source, querying the adapter on first
// use and the cache afterwards
func (l *Live) Describe(ctx context.Context, sourceID string) (*models.SourceSchema, error) {
	l.mu.RLock()
	cached, ok := l.cache[sourceID]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	schema, err := l.adapters.Describe(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[sourceID] = schema
	l.mu.Unlock()
	return schema, nil
}

// Invalidate drops the cached description of a source, forcing
// rediscovery on next use
func (l *Live) Invalidate(sourceID string) {
	l.mu.Lock()
	delete(l.cache, sourceID)
	l.mu.Unlock()
}
