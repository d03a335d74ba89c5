package governor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/queryweaver/models"
)

func testConfig() Config {
	return Config{
		SampleThreshold:  100,
		SummaryThreshold: 10000,
		SampleSize:       25,
		Strategy:         "head_random",
		Seed:             1,
	}
}

func makeResult(rows int) *models.QueryResult {
	result := &models.QueryResult{
		Columns:  []string{"id", "amount"},
		Rows:     make([][]any, rows),
		RowCount: rows,
	}
	for i := 0; i < rows; i++ {
		result.Rows[i] = []any{i, float64(i) * 1.5}
	}
	return result
}

func TestNewRejectsBadThresholds(t *testing.T) {
	_, err := New(Config{SampleThreshold: 0, SummaryThreshold: 10})
	require.Error(t, err)

	_, err = New(Config{SampleThreshold: 100, SummaryThreshold: 50})
	require.Error(t, err)

	_, err = New(Config{SampleThreshold: 100, SummaryThreshold: 100})
	require.NoError(t, err)
}

func TestGovernSmallResultPassesThrough(t *testing.T) {
	g, err := New(testConfig())
	require.NoError(t, err)

	governed := g.Govern(makeResult(100))
	assert.Len(t, governed.Rows, 100)
	assert.Equal(t, 100, governed.RowCount)
	assert.False(t, governed.IsLargeResult)
	assert.False(t, governed.SampleUsed)
	assert.False(t, governed.SummaryUsed)
	assert.Nil(t, governed.Summary)
}

func TestGovernMediumResultIsSampled(t *testing.T) {
	g, err := New(testConfig())
	require.NoError(t, err)

	governed := g.Govern(makeResult(101))
	assert.True(t, governed.IsLargeResult)
	assert.True(t, governed.SampleUsed)
	assert.False(t, governed.SummaryUsed)
	assert.Equal(t, 101, governed.RowCount)
	assert.LessOrEqual(t, len(governed.Rows), 50)
	assert.Nil(t, governed.Summary)
}

func TestGovernLargeResultIsSummarized(t *testing.T) {
	g, err := New(testConfig())
	require.NoError(t, err)

	// well past the summary threshold; the response must stay bounded
	governed := g.Govern(makeResult(2000000))
	assert.True(t, governed.IsLargeResult)
	assert.True(t, governed.SummaryUsed)
	assert.False(t, governed.SampleUsed)
	assert.Equal(t, 2000000, governed.RowCount)
	assert.Empty(t, governed.Rows)
	require.Len(t, governed.Summary, 2)
	assert.Equal(t, "id", governed.Summary[0].Name)
}

func TestGovernFlagsAreMutuallyExclusive(t *testing.T) {
	g, err := New(testConfig())
	require.NoError(t, err)

	for _, rows := range []int{0, 1, 100, 101, 9999, 10000, 10001, 50000} {
		governed := g.Govern(makeResult(rows))
		assert.False(t, governed.SampleUsed && governed.SummaryUsed,
			"%d rows: sample_used and summary_used are exclusive", rows)
		assert.Equal(t, governed.SampleUsed || governed.SummaryUsed,
			governed.IsLargeResult,
			"%d rows: is_large_result iff a reduction was applied", rows)
	}
}

func TestHeadRandomSamplingIsDeterministic(t *testing.T) {
	first, err := New(testConfig())
	require.NoError(t, err)
	second, err := New(testConfig())
	require.NoError(t, err)

	raw := makeResult(5000)
	a := first.Govern(raw)
	b := second.Govern(raw)
	assert.Equal(t, a.Rows, b.Rows)

	// head section is always the leading rows
	g := testConfig()
	for i := 0; i < g.SampleSize; i++ {
		assert.Equal(t, raw.Rows[i], a.Rows[i])
	}
}

func TestHeadSamplerTakesLeadingRows(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy = "head"
	g, err := New(cfg)
	require.NoError(t, err)

	raw := makeResult(5000)
	governed := g.Govern(raw)
	require.Len(t, governed.Rows, cfg.SampleSize)
	assert.Equal(t, raw.Rows[:cfg.SampleSize], governed.Rows)
}

func TestSummaryStatistics(t *testing.T) {
	g, err := New(Config{SampleThreshold: 1, SummaryThreshold: 2, SampleSize: 1})
	require.NoError(t, err)

	raw := &models.QueryResult{
		Columns: []string{"city", "amount"},
		Rows: [][]any{
			{"berlin", float64(10)},
			{"tokyo", float64(30)},
			{"berlin", nil},
			{nil, float64(20)},
		},
		RowCount: 4,
	}

	governed := g.Govern(raw)
	require.True(t, governed.SummaryUsed)
	require.Len(t, governed.Summary, 2)

	city := governed.Summary[0]
	assert.Equal(t, "city", city.Name)
	assert.Equal(t, 2, city.DistinctCount)
	assert.Equal(t, 1, city.NullCount)

	amount := governed.Summary[1]
	assert.Equal(t, 3, amount.DistinctCount)
	assert.Equal(t, 1, amount.NullCount)
	assert.Equal(t, float64(10), amount.Min)
	assert.Equal(t, float64(30), amount.Max)
}

func TestGovernErrorCarriesMessage(t *testing.T) {
	g, err := New(testConfig())
	require.NoError(t, err)

	governed := g.GovernError(fmt.Errorf("query failed: %w", errors.New("relation missing")))
	assert.Contains(t, governed.Error, "relation missing")
	assert.Zero(t, governed.RowCount)
	assert.False(t, governed.IsLargeResult)
}
