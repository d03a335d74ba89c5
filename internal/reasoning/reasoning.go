// Package reasoning defines the boundary to the external reasoning
// service. The service is a black-box text-completion dependency; the
// decision it returns is a pure value, keeping all side effects (tool
// invocation, logging, persistence) outside this boundary so the session
// loop is replayable without a live service.
package reasoning

import (
	"context"

	"github.com/yourusername/queryweaver/models"
)

// ActionType discriminates the three outcomes of a reasoning step
type ActionType string

const (
	ActionToolCall      ActionType = "tool_call"
	ActionQueryProposal ActionType = "query_proposal"
	ActionFinalAnswer   ActionType = "final_answer"
)

// Action is the reasoning service's decision for one iteration
type Action struct {
	Type ActionType `json:"type"`

	// Tool call fields
	ToolName  string            `json:"tool_name,omitempty"`
	SourceID  string            `json:"source_id,omitempty"`
	Operation *models.Operation `json:"operation,omitempty"`
	Plan      *models.QueryPlan `json:"plan,omitempty"`

	// Query proposal fields
	QueryText   string `json:"query_text,omitempty"`
	Description string `json:"description,omitempty"`

	// Final answer fields
	FinalSQL string `json:"final_sql,omitempty"`
	Analysis string `json:"analysis,omitempty"`

	// Optional observation worth keeping, attached to any action
	Insight string `json:"insight,omitempty"`
}

// Reasoner proposes the next step given the session transcript so far
// (question, prior generated queries, prior governed tool results)
type Reasoner interface {
	ProposeNextStep(ctx context.Context, session *models.Session) (*Action, error)
}

// Scripted replays a fixed sequence of actions. Used by tests and demo
// mode; once the script is exhausted it keeps returning the last action.
type Scripted struct {
	actions []*Action
	next    int
}

// NewScripted creates a reasoner over a fixed action sequence
func NewScripted(actions ...*Action) *Scripted {
	return &Scripted{actions: actions}
}

// ProposeNextStep returns the next scripted action
func (s *Scripted) ProposeNextStep(_ context.Context, _ *models.Session) (*Action, error) {
	if len(s.actions) == 0 {
		return nil, models.ErrReasoningUnavailable
	}
	if s.next >= len(s.actions) {
		return s.actions[len(s.actions)-1], nil
	}
	action := s.actions[s.next]
	s.next++
	return action, nil
}
