package registry

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/queryweaver/internal/adapters"
	"github.com/yourusername/queryweaver/models"
)

// countingAdapter tracks how often schema discovery actually runs
type countingAdapter struct {
	describes atomic.Int64
}

func (c *countingAdapter) Execute(_ context.Context, _ *models.Operation) (*models.QueryResult, error) {
	return &models.QueryResult{}, nil
}

func (c *countingAdapter) Describe(_ context.Context, sourceID string) (*models.SourceSchema, error) {
	c.describes.Add(1)
	return &models.SourceSchema{
		SourceID:   sourceID,
		SourceType: models.SourceTypeSQL,
		Tables:     []models.TableSchema{{Name: "orders"}},
	}, nil
}

func (c *countingAdapter) Close() error { return nil }

func TestLiveMemoizesDescriptions(t *testing.T) {
	adapter := &countingAdapter{}
	reg := adapters.NewRegistry()
	reg.RegisterAdapter(models.SourceTypeSQL, adapter)
	require.NoError(t, reg.RegisterSource(adapters.Source{
		ID: "pg_main", Type: models.SourceTypeSQL, DSN: "stub",
	}))

	live := NewLive(reg)
	ctx := context.Background()

	first, err := live.Describe(ctx, "pg_main")
	require.NoError(t, err)
	second, err := live.Describe(ctx, "pg_main")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), adapter.describes.Load())
}

func TestLiveInvalidateForcesRediscovery(t *testing.T) {
	adapter := &countingAdapter{}
	reg := adapters.NewRegistry()
	reg.RegisterAdapter(models.SourceTypeSQL, adapter)
	require.NoError(t, reg.RegisterSource(adapters.Source{
		ID: "pg_main", Type: models.SourceTypeSQL, DSN: "stub",
	}))

	live := NewLive(reg)
	ctx := context.Background()

	_, err := live.Describe(ctx, "pg_main")
	require.NoError(t, err)

	live.Invalidate("pg_main")

	_, err = live.Describe(ctx, "pg_main")
	require.NoError(t, err)
	assert.Equal(t, int64(2), adapter.describes.Load())
}
