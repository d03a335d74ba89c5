package plan

import (
	"context"
	"fmt"
	"sort"

	"github.com/yourusername/queryweaver/internal/registry"
	"github.com/yourusername/queryweaver/models"
)

// Validate checks a plan for structural and schema errors. It is
// read-only and side-effect-free. Checks run in order: dangling
// dependency references, dependency cycles, then schema references
// against the registry. A plan must validate before execution is
// permitted.
func Validate(ctx context.Context, p *models.QueryPlan, reg registry.SchemaRegistry) models.ValidationResult {
	result := models.ValidationResult{Valid: true}

	dag, err := NewOperationDAG(p)
	if err != nil {
		// NewOperationDAG only fails on dangling references
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	if dag.HasCycles() {
		result.Valid = false
		result.Errors = append(result.Errors, models.ErrCyclicDependency.Error())
		return result
	}

	for _, op := range p.Operations() {
		if err := validateSchemaReferences(ctx, op, reg); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, err.Error())
		}
	}

	return result
}

// validateSchemaReferences confirms the operation's source and, where the
// params name them, its table/collection and filter columns exist in the
// registry
func validateSchemaReferences(ctx context.Context, op *models.Operation, reg registry.SchemaRegistry) error {
	schema, err := reg.Describe(ctx, op.SourceID)
	if err != nil {
		return fmt.Errorf("%w: operation %s references source %s: %v",
			models.ErrUnknownSchemaReference, op.ID, op.SourceID, err)
	}

	if op.Params.Collection == "" {
		return nil
	}

	table, ok := schema.Table(op.Params.Collection)
	if !ok {
		return fmt.Errorf("%w: operation %s references %s.%s",
			models.ErrUnknownSchemaReference, op.ID, op.SourceID, op.Params.Collection)
	}

	// A collection reporting no columns is schemaless (document payloads
	// with no sampled fields); filter keys cannot be checked against it
	if len(table.Columns) == 0 {
		return nil
	}

	fields := make([]string, 0, len(op.Params.Filter))
	for field := range op.Params.Filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		if !schema.HasColumn(op.Params.Collection, field) {
			return fmt.Errorf("%w: operation %s filters %s.%s on unknown column %s",
				models.ErrUnknownSchemaReference, op.ID, op.SourceID, op.Params.Collection, field)
		}
	}

	return nil
}
