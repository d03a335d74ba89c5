package models

import "errors"

// Plan construction and validation errors. These always block execution
// of the plan they were raised for.
var (
	ErrDuplicateID            = errors.New("duplicate operation id")
	ErrUnknownDependency      = errors.New("unknown dependency")
	ErrCyclicDependency       = errors.New("cyclic dependency")
	ErrUnknownSchemaReference = errors.New("unknown schema reference")
)

// Session-level errors. These force the session to a terminal state with
// partial logs intact rather than propagating past the engine.
var (
	ErrReasoningUnavailable = errors.New("reasoning service unavailable")
	ErrSessionTimeout       = errors.New("session timeout")
	ErrSessionTerminated    = errors.New("session already terminated")
	ErrPersistenceWrite     = errors.New("persistence write failure")
)
