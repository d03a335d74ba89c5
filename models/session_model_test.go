package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *Session {
	return NewSession("sess-1", "which customers placed orders over $500?")
}

func TestSessionLifecycle(t *testing.T) {
	session := newTestSession()
	assert.Equal(t, SessionStarted, session.State)

	require.NoError(t, session.AppendQuery("SELECT * FROM orders", "first look"))
	assert.Equal(t, SessionIterating, session.State)

	require.NoError(t, session.AppendToolExecution("run_targeted_query",
		map[string]any{"operation_id": "op1"},
		&GovernedResult{RowCount: 3, Columns: []string{"id"}}))

	require.NoError(t, session.AddInsight("orders table has a total column"))

	require.NoError(t, session.Finalize(
		"SELECT name FROM customers WHERE total > 500", "17 customers match"))
	assert.True(t, session.IsTerminated())
	assert.Equal(t, "17 customers match", session.FinalAnalysis)
}

func TestTerminatedSessionRejectsAllMutation(t *testing.T) {
	session := newTestSession()
	require.NoError(t, session.Finalize("SELECT 1", "done"))

	assert.ErrorIs(t, session.AppendQuery("SELECT 2", ""), ErrSessionTerminated)
	assert.ErrorIs(t, session.AppendToolExecution("get_metadata", nil, nil), ErrSessionTerminated)
	assert.ErrorIs(t, session.AddInsight("too late"), ErrSessionTerminated)
	assert.ErrorIs(t, session.Finalize("SELECT 3", "again"), ErrSessionTerminated)
	assert.ErrorIs(t, session.ForceTerminate("again"), ErrSessionTerminated)
}

func TestFinalizeFlipsMatchingLastQuery(t *testing.T) {
	session := newTestSession()
	require.NoError(t, session.AppendQuery("SELECT 1", "attempt"))
	require.NoError(t, session.AppendQuery("SELECT 2", "better"))

	require.NoError(t, session.Finalize("SELECT 2", "done"))

	require.Len(t, session.GeneratedQueries, 2)
	assert.False(t, session.GeneratedQueries[0].IsFinal)
	assert.True(t, session.GeneratedQueries[1].IsFinal)
}

func TestFinalizeAppendsUnseenFinalQuery(t *testing.T) {
	session := newTestSession()
	require.NoError(t, session.AppendQuery("SELECT 1", "attempt"))

	require.NoError(t, session.Finalize("SELECT 2", "done"))

	require.Len(t, session.GeneratedQueries, 2)
	last := session.GeneratedQueries[len(session.GeneratedQueries)-1]
	assert.True(t, last.IsFinal)
	assert.Equal(t, "SELECT 2", last.QueryText)

	finals := 0
	for _, q := range session.GeneratedQueries {
		if q.IsFinal {
			finals++
		}
	}
	assert.Equal(t, 1, finals)
}

func TestGovernanceFlagsFollowLatestResult(t *testing.T) {
	session := newTestSession()

	require.NoError(t, session.AppendToolExecution("run_targeted_query", nil,
		&GovernedResult{RowCount: 50000, IsLargeResult: true, SummaryUsed: true}))
	assert.True(t, session.IsLargeResult)
	assert.True(t, session.SummaryUsed)
	assert.Equal(t, 50000, session.RowCount)

	require.NoError(t, session.AppendToolExecution("run_targeted_query", nil,
		&GovernedResult{RowCount: 10}))
	assert.False(t, session.IsLargeResult)
	assert.False(t, session.SummaryUsed)
	assert.Equal(t, 10, session.RowCount)
}

func TestLastUpdateTimeIsMonotone(t *testing.T) {
	session := newTestSession()
	previous := session.LastUpdateTime

	for i := 0; i < 5; i++ {
		require.NoError(t, session.AddInsight("note"))
		assert.False(t, session.LastUpdateTime.Before(previous))
		previous = session.LastUpdateTime
	}
}

func TestSessionDocumentRoundTripLegacy(t *testing.T) {
	session := newTestSession()
	require.NoError(t, session.AppendQuery("SELECT 1", "attempt"))
	require.NoError(t, session.AppendToolExecution("get_metadata",
		map[string]any{"source_id": "pg_main"},
		&GovernedResult{RowCount: 4, Columns: []string{"table"}}))
	require.NoError(t, session.Finalize("SELECT 1", "one row"))

	data, err := session.MarshalDocument(SchemaVersionLegacy)
	require.NoError(t, err)

	// numeric and boolean fields are strings in the legacy format
	assert.Contains(t, string(data), `"schema_version":"1"`)
	assert.Contains(t, string(data), `"row_count":"4"`)
	assert.Contains(t, string(data), `"is_large_result":"false"`)

	restored, err := UnmarshalDocument(data)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, restored.SessionID)
	assert.Equal(t, session.UserQuestion, restored.UserQuestion)
	assert.Equal(t, SessionTerminated, restored.State)
	assert.Equal(t, 4, restored.RowCount)
	assert.Equal(t, session.FinalSQL, restored.FinalSQL)
	assert.Len(t, restored.GeneratedQueries, 1)
	assert.Len(t, restored.ExecutedTools, 1)
}

func TestSessionDocumentRoundTripNative(t *testing.T) {
	session := newTestSession()
	require.NoError(t, session.AppendToolExecution("run_targeted_query", nil,
		&GovernedResult{RowCount: 250, IsLargeResult: true, SampleUsed: true}))
	require.NoError(t, session.Finalize("", "nothing conclusive"))

	data, err := session.MarshalDocument(SchemaVersionNative)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"schema_version":"2"`)
	assert.Contains(t, string(data), `"row_count":250`)

	restored, err := UnmarshalDocument(data)
	require.NoError(t, err)
	assert.Equal(t, 250, restored.RowCount)
	assert.True(t, restored.SampleUsed)
	assert.True(t, restored.IsTerminated())
}

func TestMarshalDocumentRejectsUnknownVersion(t *testing.T) {
	_, err := newTestSession().MarshalDocument("7")
	require.Error(t, err)
}
