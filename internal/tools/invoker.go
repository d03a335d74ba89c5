// Package tools wraps concrete actions behind a uniform call/record
// interface. Every invocation, successful or not, is appended to the
// session's executed_tools log with its governed result before control
// returns to the reasoning step.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/yourusername/queryweaver/internal/adapters"
	"github.com/yourusername/queryweaver/internal/governor"
	"github.com/yourusername/queryweaver/internal/logger"
	"github.com/yourusername/queryweaver/internal/plan"
	"github.com/yourusername/queryweaver/internal/registry"
	"github.com/yourusername/queryweaver/models"
)

// Canonical tool names required by the session loop
const (
	ToolGetMetadata      = "get_metadata"
	ToolRunTargetedQuery = "run_targeted_query"
)

// Invoker executes tools against registered sources, governs their
// results, and records every call into the owning session
type Invoker struct {
	adapters *adapters.Registry
	schemas  registry.SchemaRegistry
	governor *governor.Governor
	steps    *logger.StepLogger

	// Progress, when set, is called after each operation of a plan
	// completes with (completed, total) counts
	Progress func(completed, total int)
}

// NewInvoker creates a tool invocation layer
func NewInvoker(adapterReg *adapters.Registry, schemas registry.SchemaRegistry,
	gov *governor.Governor, steps *logger.StepLogger) *Invoker {
	return &Invoker{
		adapters: adapterReg,
		schemas:  schemas,
		governor: gov,
		steps:    steps,
	}
}

// Invoke dispatches a tool call by name with a generic params payload,
// for callers holding an undecoded tool request. params carries
// "source_id" for get_metadata and either "operation" or "plan" (their
// JSON object forms) for run_targeted_query. Unknown tool names are
// recorded against the session so the caller's mistake is visible in the
// transcript.
func (inv *Invoker) Invoke(ctx context.Context, session *models.Session, toolName string, params map[string]any) (*models.GovernedResult, error) {
	switch toolName {
	case ToolGetMetadata:
		sourceID, _ := params["source_id"].(string)
		schema, err := inv.GetMetadata(ctx, session, sourceID)
		if err != nil {
			return inv.governor.GovernError(err), err
		}
		return metadataResult(schema), nil

	case ToolRunTargetedQuery:
		if raw, ok := params["plan"]; ok {
			queryPlan := &models.QueryPlan{}
			if err := decodeParam(raw, queryPlan); err != nil {
				return inv.recordBadParams(session, toolName, params, err)
			}
			results, err := inv.RunPlan(ctx, session, queryPlan)
			if err != nil {
				return inv.governor.GovernError(err), err
			}
			return planResult(results), nil
		}
		if raw, ok := params["operation"]; ok {
			op := &models.Operation{}
			if err := decodeParam(raw, op); err != nil {
				return inv.recordBadParams(session, toolName, params, err)
			}
			return inv.RunTargetedQuery(ctx, session, op)
		}
		return inv.recordBadParams(session, toolName, params,
			fmt.Errorf("run_targeted_query carries no operation"))

	default:
		return inv.recordBadParams(session, toolName, params,
			fmt.Errorf("unknown tool: %s", toolName))
	}
}

// decodeParam converts a generic JSON value into a typed payload
func decodeParam(raw, target any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("invalid tool params: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("invalid tool params: %w", err)
	}
	return nil
}

// recordBadParams logs an unusable call and returns its error payload
func (inv *Invoker) recordBadParams(session *models.Session, toolName string, params map[string]any, err error) (*models.GovernedResult, error) {
	governed := inv.governor.GovernError(err)
	inv.record(session, toolName, params, governed)
	return governed, err
}

// planResult folds per-operation results into one governed summary row
// per operation
func planResult(results map[string]*models.GovernedResult) *models.GovernedResult {
	combined := &models.GovernedResult{
		Columns: []string{"operation_id", "row_count", "error"},
	}
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		combined.Rows = append(combined.Rows, []any{id, results[id].RowCount, results[id].Error})
	}
	combined.RowCount = len(combined.Rows)
	return combined
}

// GetMetadata runs schema discovery for one source and records the call
func (inv *Invoker) GetMetadata(ctx context.Context, session *models.Session, sourceID string) (*models.SourceSchema, error) {
	step := inv.steps.StartStep(logger.ComponentTools, "get_metadata "+sourceID)
	params := map[string]any{"source_id": sourceID}

	schema, err := inv.schemas.Describe(ctx, sourceID)
	if err != nil {
		inv.record(session, ToolGetMetadata, params, inv.governor.GovernError(err))
		inv.steps.FailStep(step, err)
		return nil, err
	}

	inv.record(session, ToolGetMetadata, params, metadataResult(schema))
	inv.steps.CompleteStep(step)
	return schema, nil
}

// RunTargetedQuery executes one concrete operation and records the call.
// Adapter failures are recoverable: the error is logged in the tool entry
// and returned so the reasoning service can adapt.
func (inv *Invoker) RunTargetedQuery(ctx context.Context, session *models.Session, op *models.Operation) (*models.GovernedResult, error) {
	step := inv.steps.StartStep(logger.ComponentTools, "run_targeted_query "+op.ID)
	params := operationParams(op)

	raw, err := inv.adapters.Execute(ctx, op)
	if err != nil {
		governed := inv.governor.GovernError(err)
		inv.record(session, ToolRunTargetedQuery, params, governed)
		inv.steps.FailStep(step, err)
		return governed, err
	}

	governed := inv.governor.Govern(raw)
	inv.record(session, ToolRunTargetedQuery, params, governed)
	inv.steps.CompleteStep(step)
	return governed, nil
}

// RunPlan validates a plan and executes it batch by batch. Operations
// within one batch have all dependencies satisfied and run concurrently,
// each against its own source connection. Structural errors (cycle,
// dangling dependency, schema mismatch) refuse execution; per-operation
// failures are logged and execution of independent operations continues.
// A refused plan is still recorded against the session with its error
// payload, so the caller sees why nothing ran.
func (inv *Invoker) RunPlan(ctx context.Context, session *models.Session, queryPlan *models.QueryPlan) (map[string]*models.GovernedResult, error) {
	step := inv.steps.StartStep(logger.ComponentPlan,
		fmt.Sprintf("execute plan (%d operations)", queryPlan.Len()))

	validation := plan.Validate(ctx, queryPlan, inv.schemas)
	if !validation.Valid {
		err := fmt.Errorf("plan validation failed: %v", validation.Errors)
		inv.record(session, ToolRunTargetedQuery, planParams(queryPlan), inv.governor.GovernError(err))
		inv.steps.FailStep(step, err)
		return nil, err
	}

	dag, err := plan.NewOperationDAG(queryPlan)
	if err != nil {
		inv.record(session, ToolRunTargetedQuery, planParams(queryPlan), inv.governor.GovernError(err))
		inv.steps.FailStep(step, err)
		return nil, err
	}
	batches, err := dag.ParallelBatches()
	if err != nil {
		inv.record(session, ToolRunTargetedQuery, planParams(queryPlan), inv.governor.GovernError(err))
		inv.steps.FailStep(step, err)
		return nil, err
	}

	results := make(map[string]*models.GovernedResult, queryPlan.Len())
	completed := 0

	for _, batch := range batches {
		batchResults := inv.executeBatch(ctx, queryPlan, batch)

		// Log entries are appended in batch node order so the executed
		// tools log stays deterministic
		for _, id := range batch {
			op, _ := queryPlan.Operation(id)
			inv.record(session, ToolRunTargetedQuery, operationParams(op), batchResults[id])
			results[id] = batchResults[id]

			completed++
			if inv.Progress != nil {
				inv.Progress(completed, queryPlan.Len())
			}
		}

		if ctx.Err() != nil {
			inv.steps.FailStep(step, ctx.Err())
			return results, ctx.Err()
		}
	}

	inv.steps.CompleteStep(step)
	return results, nil
}

// executeBatch runs one wave of operations concurrently
func (inv *Invoker) executeBatch(ctx context.Context, queryPlan *models.QueryPlan, batch []string) map[string]*models.GovernedResult {
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make(map[string]*models.GovernedResult, len(batch))

	for _, id := range batch {
		op, _ := queryPlan.Operation(id)

		wg.Add(1)
		go func(op *models.Operation) {
			defer wg.Done()

			var governed *models.GovernedResult
			raw, err := inv.adapters.Execute(ctx, op)
			if err != nil {
				governed = inv.governor.GovernError(err)
			} else {
				governed = inv.governor.Govern(raw)
			}

			mu.Lock()
			results[op.ID] = governed
			mu.Unlock()
		}(op)
	}

	wg.Wait()
	return results
}

// record appends the invocation to the session log. Appending cannot fail
// for a live session; a terminated session rejects the append, which is
// surfaced to the step log rather than dropped silently.
func (inv *Invoker) record(session *models.Session, toolName string, params map[string]any, result *models.GovernedResult) {
	if err := session.AppendToolExecution(toolName, params, result); err != nil {
		failed := inv.steps.StartStep(logger.ComponentTools, "record "+toolName)
		inv.steps.FailStep(failed, err)
	}
}

// planParams renders a whole plan as the params payload of its log entry,
// used when the plan is refused before any operation runs
func planParams(queryPlan *models.QueryPlan) map[string]any {
	return map[string]any{
		"operation_count": queryPlan.Len(),
		"operation_ids":   queryPlan.OperationIDs(),
	}
}

// operationParams renders an operation as the params payload of its log
// entry
func operationParams(op *models.Operation) map[string]any {
	params := map[string]any{
		"operation_id": op.ID,
		"source_id":    op.SourceID,
		"source_type":  string(op.SourceType),
	}
	if op.Params.Query != "" {
		params["query"] = op.Params.Query
	}
	if op.Params.Collection != "" {
		params["collection"] = op.Params.Collection
	}
	if op.Params.TopK > 0 {
		params["top_k"] = op.Params.TopK
	}
	if op.Params.Endpoint != "" {
		params["endpoint"] = op.Params.Endpoint
	}
	return params
}

// metadataResult renders a schema description as a small governed result
// so metadata calls share the executed_tools entry shape
func metadataResult(schema *models.SourceSchema) *models.GovernedResult {
	result := &models.GovernedResult{
		Columns: []string{"table", "columns", "row_count"},
	}
	for _, table := range schema.Tables {
		names := make([]string, len(table.Columns))
		for i, col := range table.Columns {
			names[i] = col.Name
		}
		result.Rows = append(result.Rows, []any{table.Name, names, table.RowCount})
	}
	result.RowCount = len(result.Rows)
	return result
}
