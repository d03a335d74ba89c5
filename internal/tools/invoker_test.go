package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/queryweaver/internal/adapters"
	"github.com/yourusername/queryweaver/internal/governor"
	"github.com/yourusername/queryweaver/internal/logger"
	"github.com/yourusername/queryweaver/internal/registry"
	"github.com/yourusername/queryweaver/models"
)

// fakeAdapter executes operations against canned per-operation results
type fakeAdapter struct {
	results map[string]*models.QueryResult
	errs    map[string]error
}

func (f *fakeAdapter) Execute(_ context.Context, op *models.Operation) (*models.QueryResult, error) {
	if err, ok := f.errs[op.ID]; ok {
		return nil, err
	}
	if result, ok := f.results[op.ID]; ok {
		return result, nil
	}
	return &models.QueryResult{Columns: []string{"ok"}, Rows: [][]any{{true}}, RowCount: 1}, nil
}

func (f *fakeAdapter) Describe(_ context.Context, sourceID string) (*models.SourceSchema, error) {
	return &models.SourceSchema{SourceID: sourceID, SourceType: models.SourceTypeSQL}, nil
}

func (f *fakeAdapter) Close() error { return nil }

func testInvoker(t *testing.T, fake *fakeAdapter) *Invoker {
	t.Helper()

	steps, err := logger.NewStepLogger("test", "error", t.TempDir(), false, false)
	require.NoError(t, err)
	t.Cleanup(func() { steps.Close() })

	adapterReg := adapters.NewRegistry()
	adapterReg.RegisterAdapter(models.SourceTypeSQL, fake)
	require.NoError(t, adapterReg.RegisterSource(adapters.Source{
		ID: "pg_main", Type: models.SourceTypeSQL, DSN: "fake",
	}))

	gov, err := governor.New(governor.Config{SampleThreshold: 100, SummaryThreshold: 10000})
	require.NoError(t, err)

	schemas := registry.NewStatic(&models.SourceSchema{
		SourceID:   "pg_main",
		SourceType: models.SourceTypeSQL,
		Tables: []models.TableSchema{
			{Name: "orders", Columns: []models.ColumnSchema{{Name: "id", Type: "integer"}}},
		},
	})

	return NewInvoker(adapterReg, schemas, gov, steps)
}

func op(id string, deps ...string) *models.Operation {
	return &models.Operation{
		ID: id, SourceID: "pg_main", SourceType: models.SourceTypeSQL,
		Params:    models.OperationParams{Query: "SELECT 1"},
		DependsOn: deps,
	}
}

func TestGetMetadataRecordsSchema(t *testing.T) {
	inv := testInvoker(t, &fakeAdapter{})
	session := models.NewSession("s1", "test")

	schema, err := inv.GetMetadata(context.Background(), session, "pg_main")
	require.NoError(t, err)
	require.NotNil(t, schema)
	assert.Equal(t, "pg_main", schema.SourceID)

	require.Len(t, session.ExecutedTools, 1)
	entry := session.ExecutedTools[0]
	assert.Equal(t, ToolGetMetadata, entry.ToolName)
	assert.Equal(t, "pg_main", entry.Params["source_id"])
	require.NotNil(t, entry.ResultSummary)
	assert.Equal(t, 1, entry.ResultSummary.RowCount)
}

func TestGetMetadataRecordsUnknownSource(t *testing.T) {
	inv := testInvoker(t, &fakeAdapter{})
	session := models.NewSession("s1", "test")

	_, err := inv.GetMetadata(context.Background(), session, "nowhere")
	require.Error(t, err)

	require.Len(t, session.ExecutedTools, 1)
	assert.Contains(t, session.ExecutedTools[0].ResultSummary.Error, "nowhere")
}

func TestRunTargetedQueryGovernsResult(t *testing.T) {
	rows := make([][]any, 500)
	for i := range rows {
		rows[i] = []any{i}
	}
	fake := &fakeAdapter{results: map[string]*models.QueryResult{
		"op1": {Columns: []string{"id"}, Rows: rows, RowCount: 500},
	}}

	inv := testInvoker(t, fake)
	session := models.NewSession("s1", "test")

	governed, err := inv.RunTargetedQuery(context.Background(), session, op("op1"))
	require.NoError(t, err)
	assert.True(t, governed.SampleUsed)
	assert.Equal(t, 500, governed.RowCount)
	assert.Less(t, len(governed.Rows), 500)

	// the session log carries the governed form, never the raw rows
	require.Len(t, session.ExecutedTools, 1)
	assert.Same(t, governed, session.ExecutedTools[0].ResultSummary)
	assert.True(t, session.SampleUsed)
}

func TestRunTargetedQueryRecordsFailure(t *testing.T) {
	fake := &fakeAdapter{errs: map[string]error{"op1": errors.New("relation missing")}}
	inv := testInvoker(t, fake)
	session := models.NewSession("s1", "test")

	governed, err := inv.RunTargetedQuery(context.Background(), session, op("op1"))
	require.Error(t, err)
	require.NotNil(t, governed)
	assert.Contains(t, governed.Error, "relation missing")

	require.Len(t, session.ExecutedTools, 1)
	assert.Contains(t, session.ExecutedTools[0].ResultSummary.Error, "relation missing")
}

func TestRunPlanExecutesInBatchOrder(t *testing.T) {
	inv := testInvoker(t, &fakeAdapter{})
	session := models.NewSession("s1", "test")

	queryPlan := models.NewQueryPlan("fan in")
	require.NoError(t, queryPlan.AddOperation(op("a")))
	require.NoError(t, queryPlan.AddOperation(op("b")))
	require.NoError(t, queryPlan.AddOperation(op("join", "a", "b")))

	var progress [][2]int
	inv.Progress = func(completed, total int) {
		progress = append(progress, [2]int{completed, total})
	}

	results, err := inv.RunPlan(context.Background(), session, queryPlan)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// log entries follow batch node order
	require.Len(t, session.ExecutedTools, 3)
	assert.Equal(t, "a", session.ExecutedTools[0].Params["operation_id"])
	assert.Equal(t, "b", session.ExecutedTools[1].Params["operation_id"])
	assert.Equal(t, "join", session.ExecutedTools[2].Params["operation_id"])

	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
}

func TestRunPlanRefusesCyclicPlan(t *testing.T) {
	inv := testInvoker(t, &fakeAdapter{})
	session := models.NewSession("s1", "test")

	queryPlan := models.NewQueryPlan("cycle")
	require.NoError(t, queryPlan.AddOperation(op("a", "b")))
	require.NoError(t, queryPlan.AddOperation(op("b", "a")))

	_, err := inv.RunPlan(context.Background(), session, queryPlan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	// the refusal itself is logged with its error payload; no operation ran
	require.Len(t, session.ExecutedTools, 1)
	entry := session.ExecutedTools[0]
	assert.Equal(t, ToolRunTargetedQuery, entry.ToolName)
	assert.Equal(t, 2, entry.Params["operation_count"])
	require.NotNil(t, entry.ResultSummary)
	assert.Contains(t, entry.ResultSummary.Error, "validation failed")
	assert.Contains(t, entry.ResultSummary.Error, "cyclic")
}

func TestInvokeDispatchesByName(t *testing.T) {
	inv := testInvoker(t, &fakeAdapter{})
	session := models.NewSession("s1", "test")

	result, err := inv.Invoke(context.Background(), session, ToolGetMetadata,
		map[string]any{"source_id": "pg_main"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)

	// operation payload arrives as a generic JSON object
	result, err = inv.Invoke(context.Background(), session, ToolRunTargetedQuery,
		map[string]any{"operation": map[string]any{
			"id":          "op1",
			"source_id":   "pg_main",
			"source_type": "sql",
			"params":      map[string]any{"query": "SELECT 1"},
		}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
	assert.Len(t, session.ExecutedTools, 2)
}

func TestInvokeRecordsUnknownTool(t *testing.T) {
	inv := testInvoker(t, &fakeAdapter{})
	session := models.NewSession("s1", "test")

	_, err := inv.Invoke(context.Background(), session, "drop_table", nil)
	require.Error(t, err)

	require.Len(t, session.ExecutedTools, 1)
	assert.Contains(t, session.ExecutedTools[0].ResultSummary.Error, "unknown tool")
}

func TestInvokeRunsWholePlan(t *testing.T) {
	inv := testInvoker(t, &fakeAdapter{})
	session := models.NewSession("s1", "test")

	result, err := inv.Invoke(context.Background(), session, ToolRunTargetedQuery,
		map[string]any{"plan": map[string]any{
			"operations": []any{
				map[string]any{"id": "a", "source_id": "pg_main", "source_type": "sql",
					"params": map[string]any{"query": "SELECT 1"}},
				map[string]any{"id": "b", "source_id": "pg_main", "source_type": "sql",
					"params": map[string]any{"query": "SELECT 2"}, "depends_on": []any{"a"}},
			},
		}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, []string{"operation_id", "row_count", "error"}, result.Columns)
}

func TestRunPlanContinuesPastFailedOperation(t *testing.T) {
	fake := &fakeAdapter{errs: map[string]error{"a": errors.New("timeout")}}
	inv := testInvoker(t, fake)
	session := models.NewSession("s1", "test")

	queryPlan := models.NewQueryPlan("independent")
	require.NoError(t, queryPlan.AddOperation(op("a")))
	require.NoError(t, queryPlan.AddOperation(op("b")))

	results, err := inv.RunPlan(context.Background(), session, queryPlan)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Contains(t, results["a"].Error, "timeout")
	assert.Empty(t, results["b"].Error)
	assert.Equal(t, 1, results["b"].RowCount)
}
