// Package adapters wraps concrete data sources behind one capability
// interface. Adapters are registered by source_type, so extending the
// system to a new kind of source is a single registration call.
package adapters

import (
	"context"
	"fmt"
	"sync"

	"github.com/yourusername/queryweaver/models"
)

// Adapter is the uniform capability interface every source adapter
// implements
type Adapter interface {
	// Execute runs one operation and returns its rows, columns and timing
	Execute(ctx context.Context, op *models.Operation) (*models.QueryResult, error)

	// Describe returns the schema of the given source
	Describe(ctx context.Context, sourceID string) (*models.SourceSchema, error)

	// Close releases the adapter's connections
	Close() error
}

// Source binds a registered source id to its type and connection string
type Source struct {
	ID   string            `json:"id" mapstructure:"id"`
	Type models.SourceType `json:"type" mapstructure:"type"`
	DSN  string            `json:"dsn" mapstructure:"dsn"`
}

// ExecutionError reports a single operation's underlying source call
// failure. It is recoverable within the session loop: the failure is
// logged and the reasoning service gets a chance to adapt.
type ExecutionError struct {
	SourceID    string
	OperationID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("adapter execution failed for operation %s on source %s: %v",
		e.OperationID, e.SourceID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Registry maps source types to adapters and source ids to their
// bindings. It is shared across sessions and safe for concurrent reads;
// registration happens once at startup.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.SourceType]Adapter
	sources  map[string]Source
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[models.SourceType]Adapter),
		sources:  make(map[string]Source),
	}
}

// RegisterAdapter registers the adapter serving a source type
func (r *Registry) RegisterAdapter(sourceType models.SourceType, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[sourceType] = adapter
}

// RegisterSource binds a source id to a source type. The type must have
// a registered adapter.
func (r *Registry) RegisterSource(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[src.Type]; !ok {
		return fmt.Errorf("no adapter registered for source type %q", src.Type)
	}
	r.sources[src.ID] = src
	return nil
}

// Source returns the binding for a source id
func (r *Registry) Source(sourceID string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[sourceID]
	return src, ok
}

// SourceIDs returns all registered source ids
func (r *Registry) SourceIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	return ids
}

// AdapterFor resolves the adapter serving a source id
func (r *Registry) AdapterFor(sourceID string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.sources[sourceID]
	if !ok {
		return nil, fmt.Errorf("unknown source: %s", sourceID)
	}
	adapter, ok := r.adapters[src.Type]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for source type %q", src.Type)
	}
	return adapter, nil
}

// Execute dispatches one operation to the adapter serving its source.
// Failures are wrapped in an ExecutionError carrying the operation and
// source ids.
func (r *Registry) Execute(ctx context.Context, op *models.Operation) (*models.QueryResult, error) {
	adapter, err := r.AdapterFor(op.SourceID)
	if err != nil {
		return nil, &ExecutionError{SourceID: op.SourceID, OperationID: op.ID, Err: err}
	}

	result, err := adapter.Execute(ctx, op)
	if err != nil {
		return nil, &ExecutionError{SourceID: op.SourceID, OperationID: op.ID, Err: err}
	}
	return result, nil
}

// Describe dispatches a schema description request to the adapter
// serving the source
func (r *Registry) Describe(ctx context.Context, sourceID string) (*models.SourceSchema, error) {
	adapter, err := r.AdapterFor(sourceID)
	if err != nil {
		return nil, err
	}
	return adapter.Describe(ctx, sourceID)
}

// Close closes every registered adapter
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, adapter := range r.adapters {
		if err := adapter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
