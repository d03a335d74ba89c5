package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/queryweaver/models"
)

func testStore(t *testing.T, schemaVersion string) *SessionStore {
	t.Helper()
	store, err := NewSessionStore(filepath.Join(t.TempDir(), "sessions.db"), schemaVersion)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleSession(id string) *models.Session {
	session := models.NewSession(id, "which customers placed orders over $500?")
	_ = session.AppendQuery("SELECT * FROM orders", "first look")
	_ = session.AppendToolExecution("run_targeted_query",
		map[string]any{"operation_id": "op1"},
		&models.GovernedResult{RowCount: 12, Columns: []string{"id"}})
	_ = session.AddInsight("orders has a total column")
	return session
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	for _, version := range []string{models.SchemaVersionLegacy, models.SchemaVersionNative} {
		t.Run("schema_version_"+version, func(t *testing.T) {
			store := testStore(t, version)
			ctx := context.Background()

			session := sampleSession("sess-rt")
			require.NoError(t, session.Finalize("SELECT name FROM customers", "17 match"))
			require.NoError(t, store.Save(ctx, session))

			restored, err := store.Load(ctx, "sess-rt")
			require.NoError(t, err)

			assert.Equal(t, session.SessionID, restored.SessionID)
			assert.Equal(t, session.UserQuestion, restored.UserQuestion)
			assert.Equal(t, models.SessionTerminated, restored.State)
			assert.Equal(t, session.FinalSQL, restored.FinalSQL)
			assert.Len(t, restored.GeneratedQueries, 2)
			assert.Len(t, restored.ExecutedTools, 1)
			assert.Equal(t, []string{"orders has a total column"}, restored.Insights)
			assert.Equal(t, 12, restored.RowCount)
		})
	}
}

func TestSaveReplacesExistingDocument(t *testing.T) {
	store := testStore(t, models.SchemaVersionNative)
	ctx := context.Background()

	session := sampleSession("sess-upd")
	require.NoError(t, store.Save(ctx, session))

	require.NoError(t, session.Finalize("SELECT 1", "done"))
	require.NoError(t, store.Save(ctx, session))

	restored, err := store.Load(ctx, "sess-upd")
	require.NoError(t, err)
	assert.Equal(t, models.SessionTerminated, restored.State)

	summaries, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, summaries, 1, "replace must not duplicate the row")
}

func TestLoadMissingSession(t *testing.T) {
	store := testStore(t, models.SchemaVersionNative)

	_, err := store.Load(context.Background(), "no-such-id")
	require.Error(t, err)
}

func TestListOrdersByRecency(t *testing.T) {
	store := testStore(t, models.SchemaVersionNative)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, store.Save(ctx, sampleSession(id)))
		time.Sleep(5 * time.Millisecond)
	}

	summaries, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "s3", summaries[0].SessionID)
	assert.Equal(t, "s2", summaries[1].SessionID)
}

func TestDeleteOlderThan(t *testing.T) {
	store := testStore(t, models.SchemaVersionNative)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSession("sess-old")))

	deleted, err := store.DeleteOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = store.DeleteOlderThan(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
