package models

import "time"

// QueryResult is the uniform result shape returned by every source adapter
type QueryResult struct {
	Columns       []string      `json:"columns"`
	Rows          [][]any       `json:"rows"`
	RowCount      int           `json:"row_count"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// ColumnSummary holds per-column aggregate statistics computed when a
// result is too large to return row-level data
type ColumnSummary struct {
	Name          string `json:"name"`
	DistinctCount int    `json:"distinct_count"`
	NullCount     int    `json:"null_count"`
	Min           any    `json:"min,omitempty"`
	Max           any    `json:"max,omitempty"`
}

// GovernedResult is what the session loop actually sees: either the raw
// result, a sample of its rows, or a per-column summary, plus flags
// recording how the payload was bounded
type GovernedResult struct {
	Columns       []string        `json:"columns"`
	Rows          [][]any         `json:"rows,omitempty"`
	Summary       []ColumnSummary `json:"summary,omitempty"`
	RowCount      int             `json:"row_count"`
	IsLargeResult bool            `json:"is_large_result"`
	SampleUsed    bool            `json:"sample_used"`
	SummaryUsed   bool            `json:"summary_used"`
	ExecutionTime time.Duration   `json:"execution_time"`
	Error         string          `json:"error,omitempty"`
}

// ColumnSchema describes one column of a table or collection
type ColumnSchema struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// TableSchema describes one table or collection of a data source
type TableSchema struct {
	Name     string         `json:"name"`
	Columns  []ColumnSchema `json:"columns"`
	RowCount int64          `json:"row_count"`
}

// SourceSchema is the full schema description of a registered source,
// as returned by the get_metadata tool
type SourceSchema struct {
	SourceID   string        `json:"source_id"`
	SourceType SourceType    `json:"source_type"`
	Tables     []TableSchema `json:"tables"`
}

// Table returns the schema of the named table or collection
func (s *SourceSchema) Table(name string) (*TableSchema, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// HasColumn reports whether the named table contains the named column
func (s *SourceSchema) HasColumn(table, column string) bool {
	t, ok := s.Table(table)
	if !ok {
		return false
	}
	for _, c := range t.Columns {
		if c.Name == column {
			return true
		}
	}
	return false
}
