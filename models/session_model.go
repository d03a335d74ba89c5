package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SessionState represents the lifecycle state of a session
type SessionState string

const (
	SessionStarted    SessionState = "started"
	SessionIterating  SessionState = "iterating"
	SessionTerminated SessionState = "terminated"
)

// Persistence schema versions. Version 1 keeps the historical format in
// which numeric and boolean fields are serialized as strings; version 2
// uses native JSON types.
const (
	SchemaVersionLegacy = "1"
	SchemaVersionNative = "2"
)

// GeneratedQuery is one entry in the ordered log of every concrete query
// the session loop produced, including abandoned intermediate attempts
type GeneratedQuery struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryText   string    `json:"query_text"`
	Description string    `json:"description,omitempty"`
	IsFinal     bool      `json:"is_final"`
}

// ExecutedTool is one entry in the ordered log of tool invocations.
// ResultSummary is always the governed result, never a raw oversized payload.
type ExecutedTool struct {
	Timestamp     time.Time       `json:"timestamp"`
	ToolName      string          `json:"tool_name"`
	Params        map[string]any  `json:"params,omitempty"`
	ResultSummary *GovernedResult `json:"result_summary,omitempty"`
}

// Session is the externally observable record of one natural-language
// question lifecycle. It is mutated exclusively by the session engine and
// becomes immutable once terminated.
type Session struct {
	SessionID      string       `json:"session_id"`
	UserQuestion   string       `json:"user_question"`
	State          SessionState `json:"state"`
	StartTime      time.Time    `json:"start_time"`
	LastUpdateTime time.Time    `json:"last_update_time"`

	GeneratedQueries []GeneratedQuery `json:"generated_queries"`
	ExecutedTools    []ExecutedTool   `json:"executed_tools"`
	Insights         []string         `json:"insights"`

	FinalSQL      string `json:"final_sql,omitempty"`
	FinalAnalysis string `json:"final_analysis,omitempty"`

	// Governance flags describing how the most recent result was handled
	IsLargeResult bool `json:"is_large_result"`
	RowCount      int  `json:"row_count"`
	SampleUsed    bool `json:"sample_used"`
	SummaryUsed   bool `json:"summary_used"`
}

// NewSession creates a session for the given user question
func NewSession(sessionID, question string) *Session {
	now := time.Now()
	return &Session{
		SessionID:        sessionID,
		UserQuestion:     question,
		State:            SessionStarted,
		StartTime:        now,
		LastUpdateTime:   now,
		GeneratedQueries: make([]GeneratedQuery, 0),
		ExecutedTools:    make([]ExecutedTool, 0),
		Insights:         make([]string, 0),
	}
}

// touch bumps LastUpdateTime, keeping it monotonically non-decreasing
func (s *Session) touch() {
	now := time.Now()
	if now.After(s.LastUpdateTime) {
		s.LastUpdateTime = now
	}
}

// Duration returns the elapsed session time
func (s *Session) Duration() time.Duration {
	return s.LastUpdateTime.Sub(s.StartTime)
}

// IsTerminated reports whether the session reached its absorbing state
func (s *Session) IsTerminated() bool {
	return s.State == SessionTerminated
}

// AppendQuery logs a query proposal. Proposals are always recorded with
// is_final=false; only Finalize may flip an entry.
func (s *Session) AppendQuery(queryText, description string) error {
	if s.IsTerminated() {
		return ErrSessionTerminated
	}
	s.State = SessionIterating
	s.GeneratedQueries = append(s.GeneratedQueries, GeneratedQuery{
		Timestamp:   time.Now(),
		QueryText:   queryText,
		Description: description,
	})
	s.touch()
	return nil
}

// AppendToolExecution logs one tool invocation with its governed result
// and folds the result's governance flags into the session
func (s *Session) AppendToolExecution(toolName string, params map[string]any, result *GovernedResult) error {
	if s.IsTerminated() {
		return ErrSessionTerminated
	}
	s.State = SessionIterating
	s.ExecutedTools = append(s.ExecutedTools, ExecutedTool{
		Timestamp:     time.Now(),
		ToolName:      toolName,
		Params:        params,
		ResultSummary: result,
	})
	if result != nil {
		s.IsLargeResult = result.IsLargeResult
		s.RowCount = result.RowCount
		s.SampleUsed = result.SampleUsed
		s.SummaryUsed = result.SummaryUsed
	}
	s.touch()
	return nil
}

// AddInsight records a free-text observation extracted along the way
func (s *Session) AddInsight(insight string) error {
	if s.IsTerminated() {
		return ErrSessionTerminated
	}
	if insight != "" {
		s.Insights = append(s.Insights, insight)
		s.touch()
	}
	return nil
}

// Finalize transitions the session to its terminal state. When finalSQL
// matches the chronologically last generated query, that entry is flipped
// to is_final; otherwise the final query is appended first so the invariant
// "the final entry is last" holds.
func (s *Session) Finalize(finalSQL, analysis string) error {
	if s.IsTerminated() {
		return ErrSessionTerminated
	}

	if finalSQL != "" {
		n := len(s.GeneratedQueries)
		if n > 0 && s.GeneratedQueries[n-1].QueryText == finalSQL {
			s.GeneratedQueries[n-1].IsFinal = true
		} else {
			s.GeneratedQueries = append(s.GeneratedQueries, GeneratedQuery{
				Timestamp: time.Now(),
				QueryText: finalSQL,
				IsFinal:   true,
			})
		}
	}

	s.FinalSQL = finalSQL
	s.FinalAnalysis = analysis
	s.State = SessionTerminated
	s.touch()
	return nil
}

// ForceTerminate finalizes with a best-effort analysis, used when the
// iteration bound or session timeout is hit without a final answer
func (s *Session) ForceTerminate(reason string) error {
	if s.IsTerminated() {
		return ErrSessionTerminated
	}
	return s.Finalize("", fmt.Sprintf("session ended without a final answer: %s", reason))
}

// sessionDocumentLegacy mirrors the historical persistence format in which
// numeric and boolean fields are strings. Existing readers depend on it.
type sessionDocumentLegacy struct {
	SchemaVersion    string           `json:"schema_version"`
	SessionID        string           `json:"session_id"`
	UserQuestion     string           `json:"user_question"`
	State            string           `json:"state"`
	StartTime        string           `json:"start_time"`
	LastUpdateTime   string           `json:"last_update_time"`
	DurationSeconds  string           `json:"duration_seconds"`
	GeneratedQueries []GeneratedQuery `json:"generated_queries"`
	ExecutedTools    []ExecutedTool   `json:"executed_tools"`
	Insights         []string         `json:"insights"`
	FinalSQL         string           `json:"final_sql"`
	FinalAnalysis    string           `json:"final_analysis"`
	IsLargeResult    string           `json:"is_large_result"`
	RowCount         string           `json:"row_count"`
	SampleUsed       string           `json:"sample_used"`
	SummaryUsed      string           `json:"summary_used"`
}

// sessionDocumentNative is the version 2 format using native JSON types
type sessionDocumentNative struct {
	SchemaVersion string `json:"schema_version"`
	*Session
	DurationSeconds float64 `json:"duration_seconds"`
}

// MarshalDocument serializes the session as one self-contained JSON
// document in the requested schema version
func (s *Session) MarshalDocument(schemaVersion string) ([]byte, error) {
	switch schemaVersion {
	case SchemaVersionNative:
		return json.Marshal(sessionDocumentNative{
			SchemaVersion:   SchemaVersionNative,
			Session:         s,
			DurationSeconds: s.Duration().Seconds(),
		})
	case SchemaVersionLegacy, "":
		return json.Marshal(sessionDocumentLegacy{
			SchemaVersion:    SchemaVersionLegacy,
			SessionID:        s.SessionID,
			UserQuestion:     s.UserQuestion,
			State:            string(s.State),
			StartTime:        s.StartTime.Format(time.RFC3339Nano),
			LastUpdateTime:   s.LastUpdateTime.Format(time.RFC3339Nano),
			DurationSeconds:  strconv.FormatFloat(s.Duration().Seconds(), 'f', 3, 64),
			GeneratedQueries: s.GeneratedQueries,
			ExecutedTools:    s.ExecutedTools,
			Insights:         s.Insights,
			FinalSQL:         s.FinalSQL,
			FinalAnalysis:    s.FinalAnalysis,
			IsLargeResult:    strconv.FormatBool(s.IsLargeResult),
			RowCount:         strconv.Itoa(s.RowCount),
			SampleUsed:       strconv.FormatBool(s.SampleUsed),
			SummaryUsed:      strconv.FormatBool(s.SummaryUsed),
		})
	default:
		return nil, fmt.Errorf("unknown session schema version: %q", schemaVersion)
	}
}

// UnmarshalDocument restores a session from either document version,
// sniffing the schema_version field
func UnmarshalDocument(data []byte) (*Session, error) {
	var header struct {
		SchemaVersion string `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to parse session document: %w", err)
	}

	if header.SchemaVersion == SchemaVersionNative {
		var doc sessionDocumentNative
		doc.Session = &Session{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse session document: %w", err)
		}
		return doc.Session, nil
	}

	var doc sessionDocumentLegacy
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse session document: %w", err)
	}

	startTime, err := time.Parse(time.RFC3339Nano, doc.StartTime)
	if err != nil {
		return nil, fmt.Errorf("invalid start_time: %w", err)
	}
	lastUpdate, err := time.Parse(time.RFC3339Nano, doc.LastUpdateTime)
	if err != nil {
		return nil, fmt.Errorf("invalid last_update_time: %w", err)
	}
	rowCount, _ := strconv.Atoi(doc.RowCount)
	isLarge, _ := strconv.ParseBool(doc.IsLargeResult)
	sampleUsed, _ := strconv.ParseBool(doc.SampleUsed)
	summaryUsed, _ := strconv.ParseBool(doc.SummaryUsed)

	return &Session{
		SessionID:        doc.SessionID,
		UserQuestion:     doc.UserQuestion,
		State:            SessionState(doc.State),
		StartTime:        startTime,
		LastUpdateTime:   lastUpdate,
		GeneratedQueries: doc.GeneratedQueries,
		ExecutedTools:    doc.ExecutedTools,
		Insights:         doc.Insights,
		FinalSQL:         doc.FinalSQL,
		FinalAnalysis:    doc.FinalAnalysis,
		IsLargeResult:    isLarge,
		RowCount:         rowCount,
		SampleUsed:       sampleUsed,
		SummaryUsed:      summaryUsed,
	}, nil
}
