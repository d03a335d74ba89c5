// Package session implements the stateful loop that answers one
// natural-language question: ask the reasoning service which tool to call
// next, invoke it, fold the governed result back into the transcript, and
// terminate when a final answer is produced or a bound is reached.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/queryweaver/internal/logger"
	"github.com/yourusername/queryweaver/internal/reasoning"
	"github.com/yourusername/queryweaver/internal/tools"
	"github.com/yourusername/queryweaver/models"
)

// Config bounds the session loop
type Config struct {
	// MaxIterations forces termination with a best-effort analysis when
	// the reasoning service does not converge
	MaxIterations int `mapstructure:"max_iterations"`
	// Timeout aborts in-flight tool invocations and terminates the
	// session, keeping whatever partial logs exist
	Timeout time.Duration `mapstructure:"timeout"`
}

// Store is the persistence dependency of the engine. Each save is one
// atomic document replace.
type Store interface {
	Save(ctx context.Context, session *models.Session) error
}

// Engine drives sessions. Sessions are independent: two sessions never
// share mutable state, so one engine may run many concurrently.
type Engine struct {
	reasoner reasoning.Reasoner
	invoker  *tools.Invoker
	store    Store
	steps    *logger.StepLogger
	config   Config
}

// NewEngine creates a session engine. store may be nil, in which case
// sessions are not persisted.
func NewEngine(reasoner reasoning.Reasoner, invoker *tools.Invoker, store Store,
	steps *logger.StepLogger, config Config) *Engine {
	if config.MaxIterations <= 0 {
		config.MaxIterations = 15
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	return &Engine{
		reasoner: reasoner,
		invoker:  invoker,
		store:    store,
		steps:    steps,
		config:   config,
	}
}

// Run answers one user question end to end and returns the terminated
// session. Reasoning outages and timeouts never surface as errors: they
// force termination with partial state. Only a persistence failure after
// retries is fatal, and even then the returned session is complete in
// memory.
func (e *Engine) Run(ctx context.Context, question string) (*models.Session, error) {
	session := models.NewSession(uuid.NewString(), question)

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	step := e.steps.StartStep(logger.ComponentEngine, "session "+session.SessionID)

	for iteration := 0; iteration < e.config.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return e.terminate(session, step, models.ErrSessionTimeout.Error())
		}

		action, err := e.reasoner.ProposeNextStep(ctx, session)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return e.terminate(session, step, models.ErrSessionTimeout.Error())
			}
			return e.terminate(session, step,
				fmt.Sprintf("%v: %v", models.ErrReasoningUnavailable, err))
		}

		if action.Insight != "" {
			_ = session.AddInsight(action.Insight)
		}

		switch action.Type {
		case reasoning.ActionToolCall:
			e.applyToolCall(ctx, session, action)

		case reasoning.ActionQueryProposal:
			_ = session.AppendQuery(action.QueryText, action.Description)

		case reasoning.ActionFinalAnswer:
			_ = session.Finalize(action.FinalSQL, action.Analysis)
			return e.finish(session, step)
		}

		// The timeout may have expired while the action ran; the session
		// still terminates with its partial state rather than failing the
		// in-loop persist on a dead context
		if ctx.Err() != nil {
			return e.terminate(session, step, models.ErrSessionTimeout.Error())
		}

		if err := e.persist(ctx, session); err != nil {
			e.steps.FailStep(step, err)
			return session, err
		}
	}

	return e.terminate(session, step, "maximum iteration count reached")
}

// applyToolCall dispatches one tool call. Adapter failures are already
// logged by the invoker and are recoverable: the session continues so the
// reasoning service can adapt.
func (e *Engine) applyToolCall(ctx context.Context, session *models.Session, action *reasoning.Action) {
	switch action.ToolName {
	case tools.ToolGetMetadata:
		_, _ = e.invoker.GetMetadata(ctx, session, action.SourceID)

	case tools.ToolRunTargetedQuery:
		if action.Plan != nil {
			_, _ = e.invoker.RunPlan(ctx, session, action.Plan)
			return
		}
		if action.Operation != nil {
			_, _ = e.invoker.RunTargetedQuery(ctx, session, action.Operation)
			return
		}
		e.recordBadCall(session, action, "run_targeted_query carries no operation")

	default:
		e.recordBadCall(session, action,
			fmt.Sprintf("unknown tool: %s", action.ToolName))
	}
}

// recordBadCall logs an unusable tool call so the reasoning service sees
// its mistake on the next pass
func (e *Engine) recordBadCall(session *models.Session, action *reasoning.Action, reason string) {
	_ = session.AppendToolExecution(action.ToolName,
		map[string]any{"source_id": action.SourceID},
		&models.GovernedResult{Error: reason})
}

// terminate forces the terminal state with a best-effort note and
// persists the final record
func (e *Engine) terminate(session *models.Session, step int, reason string) (*models.Session, error) {
	_ = session.ForceTerminate(reason)
	return e.finish(session, step)
}

// finish persists the terminal record. It uses a fresh context: the
// session context may already be canceled, and the final record must not
// be lost to that.
func (e *Engine) finish(session *models.Session, step int) (*models.Session, error) {
	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.persist(persistCtx, session); err != nil {
		e.steps.FailStep(step, err)
		return session, err
	}
	e.steps.CompleteStep(step)
	return session, nil
}

func (e *Engine) persist(ctx context.Context, session *models.Session) error {
	if e.store == nil {
		return nil
	}
	return e.store.Save(ctx, session)
}
