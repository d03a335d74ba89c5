// Package logger provides step-by-step logging of session execution:
// which component acted, what it did, how long it took and how it ended.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Component identifies which subsystem produced a step
type Component string

const (
	ComponentCLI       Component = "cli"
	ComponentEngine    Component = "engine"
	ComponentPlan      Component = "plan"
	ComponentTools     Component = "tools"
	ComponentAdapter   Component = "adapter"
	ComponentGovernor  Component = "governor"
	ComponentReasoning Component = "reasoning"
	ComponentStore     Component = "store"
)

// StepStatus represents the status of a step
type StepStatus string

const (
	StatusStarted   StepStatus = "started"
	StatusCompleted StepStatus = "completed"
	StatusFailed    StepStatus = "failed"
)

// LogStep represents a single step in the execution flow
type LogStep struct {
	StepNumber int           `json:"step_number"`
	Component  string        `json:"component"`
	Action     string        `json:"action"`
	Status     StepStatus    `json:"status"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    *time.Time    `json:"end_time,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// StepLogger tracks the execution steps of one session
type StepLogger struct {
	logger      *zap.Logger
	sessionID   string
	stepCounter int
	steps       []LogStep
	mu          sync.Mutex
}

// NewStepLogger creates a step logger writing to the console and/or a
// dated file under logDir
func NewStepLogger(sessionID, logLevel, logDir string, enableConsole, enableFile bool) (*StepLogger, error) {
	level := zapcore.InfoLevel
	switch strings.ToLower(logLevel) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	config := zap.NewProductionConfig()
	config.Level.SetLevel(level)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var outputs []string
	if enableConsole {
		outputs = append(outputs, "stdout")
	}
	if enableFile {
		if logDir == "" {
			logDir = "./logs"
		}
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logFile := filepath.Join(logDir,
			fmt.Sprintf("sessions_%s.log", time.Now().Format("2006-01-02")))
		outputs = append(outputs, logFile)
	}
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	config.OutputPaths = outputs

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &StepLogger{
		logger:    logger,
		sessionID: sessionID,
		steps:     make([]LogStep, 0),
	}, nil
}

// StartStep begins a new step and returns its number
func (sl *StepLogger) StartStep(component Component, action string) int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.stepCounter++
	sl.steps = append(sl.steps, LogStep{
		StepNumber: sl.stepCounter,
		Component:  string(component),
		Action:     action,
		Status:     StatusStarted,
		StartTime:  time.Now(),
	})

	sl.logger.Debug("step started",
		zap.String("session_id", sl.sessionID),
		zap.Int("step", sl.stepCounter),
		zap.String("component", string(component)),
		zap.String("action", action),
	)

	return sl.stepCounter
}

// CompleteStep marks a step as completed
func (sl *StepLogger) CompleteStep(stepNumber int) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	step := sl.step(stepNumber)
	if step == nil {
		return
	}
	now := time.Now()
	step.Status = StatusCompleted
	step.EndTime = &now
	step.Duration = now.Sub(step.StartTime)

	sl.logger.Info("step completed",
		zap.String("session_id", sl.sessionID),
		zap.Int("step", stepNumber),
		zap.String("component", step.Component),
		zap.String("action", step.Action),
		zap.Duration("duration", step.Duration),
	)
}

// FailStep marks a step as failed
func (sl *StepLogger) FailStep(stepNumber int, err error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	step := sl.step(stepNumber)
	if step == nil {
		return
	}
	now := time.Now()
	step.Status = StatusFailed
	step.EndTime = &now
	step.Duration = now.Sub(step.StartTime)
	if err != nil {
		step.Error = err.Error()
	}

	sl.logger.Warn("step failed",
		zap.String("session_id", sl.sessionID),
		zap.Int("step", stepNumber),
		zap.String("component", step.Component),
		zap.String("action", step.Action),
		zap.Duration("duration", step.Duration),
		zap.Error(err),
	)
}

// Steps returns a snapshot of all recorded steps
func (sl *StepLogger) Steps() []LogStep {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	steps := make([]LogStep, len(sl.steps))
	copy(steps, sl.steps)
	return steps
}

// Close flushes buffered log entries
func (sl *StepLogger) Close() error {
	// stdout sync failures are expected on some platforms
	_ = sl.logger.Sync()
	return nil
}

func (sl *StepLogger) step(stepNumber int) *LogStep {
	if stepNumber <= 0 || stepNumber > len(sl.steps) {
		return nil
	}
	return &sl.steps[stepNumber-1]
}
