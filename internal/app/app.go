// Package app wires the orchestration engine together: configuration,
// logging, the session store, source adapters, the schema registry, the
// result governor, the tool invocation layer and the reasoning provider.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/queryweaver/config"
	"github.com/yourusername/queryweaver/internal/adapters"
	"github.com/yourusername/queryweaver/internal/governor"
	"github.com/yourusername/queryweaver/internal/logger"
	"github.com/yourusername/queryweaver/internal/reasoning"
	"github.com/yourusername/queryweaver/internal/registry"
	"github.com/yourusername/queryweaver/internal/session"
	"github.com/yourusername/queryweaver/internal/tools"
	"github.com/yourusername/queryweaver/models"
	"github.com/yourusername/queryweaver/storage"
)

// Application holds the wired system
type Application struct {
	Config *config.Config

	store    *storage.SessionStore
	adapters *adapters.Registry
	schemas  *registry.Live
	invoker  *tools.Invoker
	engine   *session.Engine
	steps    *logger.StepLogger
}

// New builds the application from configuration. The reasoner defaults to
// the OpenAI provider; pass a non-nil reasoner to substitute (demo mode,
// tests).
func New(reasoner reasoning.Reasoner) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	steps, err := logger.NewStepLogger("app", cfg.Logging.Level, cfg.Logging.LogDir,
		cfg.Logging.EnableConsole, cfg.Logging.EnableFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	store, err := storage.NewSessionStore(cfg.Storage.Path, cfg.Storage.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	adapterReg, err := buildAdapterRegistry(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	schemas := registry.NewLive(adapterReg)

	gov, err := governor.New(cfg.Governor)
	if err != nil {
		store.Close()
		adapterReg.Close()
		return nil, fmt.Errorf("invalid governor configuration: %w", err)
	}

	invoker := tools.NewInvoker(adapterReg, schemas, gov, steps)

	if reasoner == nil {
		reasoner, err = reasoning.NewOpenAIReasoner(cfg.Reasoning)
		if err != nil {
			store.Close()
			adapterReg.Close()
			return nil, fmt.Errorf("failed to initialize reasoning provider: %w", err)
		}
	}

	engine := session.NewEngine(reasoner, invoker, store, steps, cfg.Session)

	return &Application{
		Config:   cfg,
		store:    store,
		adapters: adapterReg,
		schemas:  schemas,
		invoker:  invoker,
		engine:   engine,
		steps:    steps,
	}, nil
}

// buildAdapterRegistry registers an adapter per configured source type
// and binds every configured source
func buildAdapterRegistry(cfg *config.Config) (*adapters.Registry, error) {
	reg := adapters.NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sources := cfg.SourcesOfType(string(models.SourceTypeSQL)); len(sources) > 0 {
		adapter, err := adapters.NewSQLAdapter(ctx, sources)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sql adapter: %w", err)
		}
		reg.RegisterAdapter(models.SourceTypeSQL, adapter)
	}

	if sources := cfg.SourcesOfType(string(models.SourceTypeDocument)); len(sources) > 0 {
		adapter, err := adapters.NewDocumentAdapter(sources)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize document adapter: %w", err)
		}
		reg.RegisterAdapter(models.SourceTypeDocument, adapter)
	}

	if sources := cfg.SourcesOfType(string(models.SourceTypeVector)); len(sources) > 0 {
		adapter, err := adapters.NewVectorAdapter(sources)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector adapter: %w", err)
		}
		reg.RegisterAdapter(models.SourceTypeVector, adapter)
	}

	// Analytics APIs and chat platforms both speak HTTP JSON
	if sources := cfg.SourcesOfType(string(models.SourceTypeAnalytics)); len(sources) > 0 {
		reg.RegisterAdapter(models.SourceTypeAnalytics, adapters.NewAnalyticsAdapter(sources))
	}
	if sources := cfg.SourcesOfType(string(models.SourceTypeChat)); len(sources) > 0 {
		reg.RegisterAdapter(models.SourceTypeChat, adapters.NewAnalyticsAdapter(sources))
	}

	for _, src := range cfg.Sources {
		if err := reg.RegisterSource(src); err != nil {
			return nil, fmt.Errorf("failed to register source %s: %w", src.ID, err)
		}
	}

	return reg, nil
}

// Ask runs one full session for the given question
func (a *Application) Ask(ctx context.Context, question string) (*models.Session, error) {
	return a.engine.Run(ctx, question)
}

// Sessions lists recently updated sessions
func (a *Application) Sessions(ctx context.Context, limit int) ([]storage.SessionSummary, error) {
	return a.store.List(ctx, limit)
}

// Session loads one stored session by id
func (a *Application) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	return a.store.Load(ctx, sessionID)
}

// Invoker exposes the tool invocation layer, letting the CLI attach a
// progress callback for plan execution
func (a *Application) Invoker() *tools.Invoker {
	return a.invoker
}

// Describe returns the schema of one registered source
func (a *Application) Describe(ctx context.Context, sourceID string) (*models.SourceSchema, error) {
	return a.schemas.Describe(ctx, sourceID)
}

// Refresh drops the cached schema of a source and rediscovers it from
// the live adapter, for when the underlying source changed shape
func (a *Application) Refresh(ctx context.Context, sourceID string) (*models.SourceSchema, error) {
	a.schemas.Invalidate(sourceID)
	return a.schemas.Describe(ctx, sourceID)
}

// SourceIDs lists all registered source ids
func (a *Application) SourceIDs() []string {
	return a.adapters.SourceIDs()
}

// Close releases all resources
func (a *Application) Close() error {
	var firstErr error
	if err := a.adapters.Close(); err != nil {
		firstErr = err
	}
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.steps.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
