package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors for scheduler operations
var (
	// ErrMaxTurns indicates the continuation loop exceeded its turn budget
	ErrMaxTurns = errors.New("max turns exceeded")

	// ErrToolNotFound indicates a requested tool is not in the registry
	ErrToolNotFound = errors.New("tool not found")

	// ErrBatchActive indicates a new batch was scheduled while the current
	// one still has calls executing or awaiting approval
	ErrBatchActive = errors.New("tool call batch still active")

	// ErrDuplicateCallID indicates two calls in one session share an id
	ErrDuplicateCallID = errors.New("duplicate tool call id")

	// ErrTurnActive indicates a submission while a turn is in flight
	ErrTurnActive = errors.New("turn already in progress")
)

// ToolErrorType categorizes tool call failures.
type ToolErrorType string

const (
	// ToolErrorNotFound indicates the tool doesn't exist
	ToolErrorNotFound ToolErrorType = "not_found"

	// ToolErrorInvalidParams indicates parameter validation failed
	ToolErrorInvalidParams ToolErrorType = "invalid_params"

	// ToolErrorExecution indicates a runtime failure during Execute
	ToolErrorExecution ToolErrorType = "execution"

	// ToolErrorCancelled indicates the user or the cancel token stopped the call
	ToolErrorCancelled ToolErrorType = "cancelled"

	// ToolErrorUnknown indicates an unclassified error
	ToolErrorUnknown ToolErrorType = "unknown"
)

// ToolError is a structured failure of one tool call. The classification
// picks the terminal state; the message is what the model sees in the
// function response.
type ToolError struct {
	// Type categorizes the failure
	Type ToolErrorType

	// ToolName is the tool that failed
	ToolName string

	// CallID correlates the error with its tool call
	CallID string

	// Message is the human-readable error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[tool:%s]", e.Type))
	if e.ToolName != "" {
		parts = append(parts, e.ToolName)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error.
func (e *ToolError) Unwrap() error {
	return e.Cause
}

// NewToolError builds a ToolError around a cause with automatic
// classification.
func NewToolError(toolName string, cause error) *ToolError {
	err := &ToolError{
		ToolName: toolName,
		Cause:    cause,
		Type:     ToolErrorUnknown,
	}
	if cause != nil {
		err.Message = cause.Error()
		switch {
		case errors.Is(cause, ErrToolNotFound):
			err.Type = ToolErrorNotFound
		case errors.Is(cause, context.Canceled):
			err.Type = ToolErrorCancelled
		default:
			err.Type = ToolErrorExecution
		}
	}
	return err
}

// WithType sets the error classification.
func (e *ToolError) WithType(t ToolErrorType) *ToolError {
	e.Type = t
	return e
}

// WithCallID sets the call id for correlation.
func (e *ToolError) WithCallID(id string) *ToolError {
	e.CallID = id
	return e
}

// WithMessage sets a custom message.
func (e *ToolError) WithMessage(msg string) *ToolError {
	e.Message = msg
	return e
}

// GetToolError extracts a ToolError from an error chain.
func GetToolError(err error) (*ToolError, bool) {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr, true
	}
	return nil, false
}

// TurnPhase identifies where in a turn an error occurred.
type TurnPhase string

const (
	// PhaseDispatch is input routing and history append
	PhaseDispatch TurnPhase = "dispatch"

	// PhaseCompress is the pre-turn compression check
	PhaseCompress TurnPhase = "compress"

	// PhaseStream is the model streaming phase
	PhaseStream TurnPhase = "stream"

	// PhaseTools is the tool batch phase
	PhaseTools TurnPhase = "tools"

	// PhaseContinue is the continuation decision phase
	PhaseContinue TurnPhase = "continue"
)

// TurnError wraps a failure with the phase and continuation count it
// happened in.
type TurnError struct {
	// Phase is the turn phase where the error occurred
	Phase TurnPhase

	// Turn is the continuation count within the submission
	Turn int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	return fmt.Sprintf("turn error at %s (turn %d): %v", e.Phase, e.Turn, e.Cause)
}

// Unwrap returns the underlying error.
func (e *TurnError) Unwrap() error {
	return e.Cause
}
