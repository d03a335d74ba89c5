package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceType identifies which adapter family an operation targets
type SourceType string

const (
	SourceTypeSQL       SourceType = "sql"
	SourceTypeDocument  SourceType = "document"
	SourceTypeVector    SourceType = "vector"
	SourceTypeChat      SourceType = "chat"
	SourceTypeAnalytics SourceType = "analytics"
)

// Operation represents one unit of work against exactly one data source
type Operation struct {
	ID         string            `json:"id"`
	SourceID   string            `json:"source_id"`
	SourceType SourceType        `json:"source_type"`
	Params     OperationParams   `json:"params"`
	DependsOn  []string          `json:"depends_on,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OperationParams is the type-specific payload for an operation.
// Which fields are meaningful depends on SourceType.
type OperationParams struct {
	// SQL sources
	Query string `json:"query,omitempty"`
	Args  []any  `json:"args,omitempty"`

	// Document sources
	Collection string         `json:"collection,omitempty"`
	Filter     map[string]any `json:"filter,omitempty"`

	// Vector sources
	Vector     []float32 `json:"vector,omitempty"`
	SearchText string    `json:"search_text,omitempty"`
	TopK       int       `json:"top_k,omitempty"`

	// Analytics / chat sources
	Endpoint string            `json:"endpoint,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

// PlanMetadata holds plan-level annotations
type PlanMetadata struct {
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// QueryPlan is an ordered collection of operations plus metadata.
// Insertion order is preserved for display and for deterministic
// tie-breaking during scheduling; it does not affect correctness.
type QueryPlan struct {
	operations map[string]*Operation
	order      []string
	Metadata   PlanMetadata
}

// NewQueryPlan creates an empty query plan
func NewQueryPlan(description string) *QueryPlan {
	return &QueryPlan{
		operations: make(map[string]*Operation),
		Metadata: PlanMetadata{
			Description: description,
			CreatedAt:   time.Now(),
		},
	}
}

// AddOperation adds an operation to the plan.
// It fails with ErrDuplicateID if the id is already present and with
// ErrUnknownDependency if the operation depends on itself.
func (p *QueryPlan) AddOperation(op *Operation) error {
	if op == nil || op.ID == "" {
		return fmt.Errorf("operation must have an id")
	}
	if _, exists := p.operations[op.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, op.ID)
	}
	for _, dep := range op.DependsOn {
		if dep == op.ID {
			return fmt.Errorf("%w: %s depends on itself", ErrUnknownDependency, op.ID)
		}
	}

	p.operations[op.ID] = op
	p.order = append(p.order, op.ID)
	return nil
}

// Operation returns the operation with the given id
func (p *QueryPlan) Operation(id string) (*Operation, bool) {
	op, ok := p.operations[id]
	return op, ok
}

// Operations returns all operations in insertion order
func (p *QueryPlan) Operations() []*Operation {
	ops := make([]*Operation, 0, len(p.order))
	for _, id := range p.order {
		ops = append(ops, p.operations[id])
	}
	return ops
}

// OperationIDs returns all operation ids in insertion order
func (p *QueryPlan) OperationIDs() []string {
	ids := make([]string, len(p.order))
	copy(ids, p.order)
	return ids
}

// Len returns the number of operations in the plan
func (p *QueryPlan) Len() int {
	return len(p.order)
}

// ValidationResult reports the outcome of plan validation
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// planDocument is the wire format for plan serialization
type planDocument struct {
	Operations []*Operation `json:"operations"`
	Metadata   PlanMetadata `json:"metadata"`
}

// MarshalJSON serializes the plan with operations in insertion order
func (p *QueryPlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(planDocument{
		Operations: p.Operations(),
		Metadata:   p.Metadata,
	})
}

// UnmarshalJSON restores a plan from its wire format
func (p *QueryPlan) UnmarshalJSON(data []byte) error {
	var doc planDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal plan: %w", err)
	}

	p.operations = make(map[string]*Operation, len(doc.Operations))
	p.order = nil
	p.Metadata = doc.Metadata

	for _, op := range doc.Operations {
		if err := p.AddOperation(op); err != nil {
			return err
		}
	}
	return nil
}
