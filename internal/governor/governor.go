// Package governor bounds the size of data returned to the reasoning
// service. The consuming service has a bounded context window: returning
// unbounded rows would either truncate silently or exceed it outright.
// The governor guarantees a bounded response while recording how it was
// bounded so the eventual analysis can caveat accuracy.
package governor

import (
	"fmt"
	"math/rand"

	"github.com/yourusername/queryweaver/models"
)

// Config holds the threshold policy. Thresholds are tuning parameters,
// never hardcoded by callers.
type Config struct {
	// SampleThreshold (T1): results with at most this many rows pass
	// through unchanged
	SampleThreshold int `mapstructure:"sample_threshold"`
	// SummaryThreshold (T2): results above this many rows are summarized
	// instead of sampled
	SummaryThreshold int `mapstructure:"summary_threshold"`
	// SampleSize is the number of rows each sampler section contributes
	SampleSize int `mapstructure:"sample_size"`
	// Strategy selects the sampling strategy: "head_random" or "head"
	Strategy string `mapstructure:"strategy"`
	// Seed makes the random section of head_random reproducible
	Seed int64 `mapstructure:"seed"`
}

// Sampler picks a bounded, representative subset of rows
type Sampler interface {
	Sample(rows [][]any, size int) [][]any
}

// Governor applies the threshold policy to raw tool results
type Governor struct {
	config  Config
	sampler Sampler
}

// New creates a governor. An unknown strategy falls back to head_random.
func New(config Config) (*Governor, error) {
	if config.SampleThreshold <= 0 || config.SummaryThreshold <= 0 {
		return nil, fmt.Errorf("governor thresholds must be positive")
	}
	if config.SummaryThreshold < config.SampleThreshold {
		return nil, fmt.Errorf("summary threshold %d below sample threshold %d",
			config.SummaryThreshold, config.SampleThreshold)
	}
	if config.SampleSize <= 0 {
		config.SampleSize = config.SampleThreshold / 2
	}

	var sampler Sampler
	switch config.Strategy {
	case "head":
		sampler = headSampler{}
	default:
		sampler = &headRandomSampler{seed: config.Seed}
	}

	return &Governor{config: config, sampler: sampler}, nil
}

// Govern converts a raw result into the bounded form the session loop
// records and the reasoning service consumes
func (g *Governor) Govern(raw *models.QueryResult) *models.GovernedResult {
	governed := &models.GovernedResult{
		Columns:       raw.Columns,
		RowCount:      raw.RowCount,
		ExecutionTime: raw.ExecutionTime,
	}

	switch {
	case raw.RowCount <= g.config.SampleThreshold:
		governed.Rows = raw.Rows

	case raw.RowCount <= g.config.SummaryThreshold:
		governed.Rows = g.sampler.Sample(raw.Rows, g.config.SampleSize)
		governed.IsLargeResult = true
		governed.SampleUsed = true

	default:
		governed.Summary = summarizeColumns(raw)
		governed.IsLargeResult = true
		governed.SummaryUsed = true
	}

	return governed
}

// GovernError wraps a failed invocation as a governed result carrying the
// error payload, so failures are logged in the same shape as successes
func (g *Governor) GovernError(err error) *models.GovernedResult {
	return &models.GovernedResult{Error: err.Error()}
}

// headSampler takes the first rows only
type headSampler struct{}

func (headSampler) Sample(rows [][]any, size int) [][]any {
	if len(rows) <= size {
		return rows
	}
	return rows[:size]
}

// headRandomSampler takes the first N rows plus N rows drawn from the
// remainder with a seeded source, deterministic for a given seed and
// input
type headRandomSampler struct {
	seed int64
}

func (s *headRandomSampler) Sample(rows [][]any, size int) [][]any {
	if len(rows) <= 2*size {
		return rows
	}

	sample := make([][]any, 0, 2*size)
	sample = append(sample, rows[:size]...)

	rest := rows[size:]
	rng := rand.New(rand.NewSource(s.seed))
	for _, idx := range rng.Perm(len(rest))[:size] {
		sample = append(sample, rest[idx])
	}

	return sample
}

// summarizeColumns computes per-column aggregate statistics: distinct and
// null counts plus min/max for orderable values
func summarizeColumns(raw *models.QueryResult) []models.ColumnSummary {
	summaries := make([]models.ColumnSummary, len(raw.Columns))

	for col := range raw.Columns {
		summary := models.ColumnSummary{Name: raw.Columns[col]}
		distinct := make(map[string]struct{})

		for _, row := range raw.Rows {
			if col >= len(row) {
				continue
			}
			value := row[col]
			if value == nil {
				summary.NullCount++
				continue
			}
			distinct[fmt.Sprintf("%v", value)] = struct{}{}

			if summary.Min == nil || lessValue(value, summary.Min) {
				summary.Min = value
			}
			if summary.Max == nil || lessValue(summary.Max, value) {
				summary.Max = value
			}
		}

		summary.DistinctCount = len(distinct)
		summaries[col] = summary
	}

	return summaries
}

// lessValue orders values numerically when both sides are numeric and
// lexically otherwise
func lessValue(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
