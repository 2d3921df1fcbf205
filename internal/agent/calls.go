package agent

import (
	"time"

	"github.com/kepvey/drover/internal/tools"
	"github.com/kepvey/drover/pkg/genai"
)

// Status is the lifecycle state of one tool call.
type Status string

const (
	StatusValidating       Status = "validating"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusScheduled        Status = "scheduled"
	StatusExecuting        Status = "executing"
	StatusSuccess          Status = "success"
	StatusError            Status = "error"
	StatusCancelled        Status = "cancelled"
)

// IsTerminal reports whether s is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}

// ToolCall tracks one model-issued (or client-initiated) call through its
// lifecycle. Owned by the scheduler goroutine; snapshots go out through
// events.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any

	Status Status
	Tool   tools.Tool

	Confirmation *tools.Confirmation
	Outcome      tools.ConfirmationOutcome

	LiveOutput string

	// Response holds the function-response parts fed back to the model.
	Response []genai.Part

	// Display is the user-facing result payload.
	Display any

	Err error

	StartTime  time.Time
	DurationMS int64

	IsClientInitiated bool

	// responseSubmitted flips once when the response is handed back to the
	// model (or acknowledged for client-initiated calls). The only field
	// that may change after a terminal state.
	responseSubmitted bool
}

// ResponseSubmitted reports whether the call's response reached the model.
func (c *ToolCall) ResponseSubmitted() bool { return c.responseSubmitted }

// MarkResponseSubmitted flips the one-shot submission flag.
func (c *ToolCall) MarkResponseSubmitted() { c.responseSubmitted = true }

// succeed finalizes the call with a successful result.
func (c *ToolCall) succeed(result *tools.Result) {
	c.Status = StatusSuccess
	c.Response = ConvertToFunctionResponse(c.Name, c.ID, result.LLMContent)
	c.Display = result.Display
	c.DurationMS = time.Since(c.StartTime).Milliseconds()
}

// fail finalizes the call with an error the model will see.
func (c *ToolCall) fail(err error) {
	c.Status = StatusError
	c.Err = err
	c.Response = ErrorResponse(c.Name, c.ID, err)
	if !c.StartTime.IsZero() {
		c.DurationMS = time.Since(c.StartTime).Milliseconds()
	}
}

// cancel finalizes the call as user- or token-cancelled.
func (c *ToolCall) cancel(reason string) {
	c.Status = StatusCancelled
	c.Response = CancelledResponse(c.Name, c.ID, reason)
	if !c.StartTime.IsZero() {
		c.DurationMS = time.Since(c.StartTime).Milliseconds()
	}
}

// snapshot builds the consumer-facing view.
func (c *ToolCall) snapshot() ToolCallSnapshot {
	desc := c.Name
	if c.Tool != nil {
		desc = c.Tool.Describe(c.Args)
	}
	return ToolCallSnapshot{
		ID:          c.ID,
		Name:        c.Name,
		Description: desc,
		Status:      c.Status,
		LiveOutput:  c.LiveOutput,
		Display:     c.Display,
		Err:         c.Err,
	}
}

// Batch is the set of calls produced by one model streaming turn.
type Batch struct {
	Calls []*ToolCall
}

// Active reports whether any call is still executing or awaiting approval.
// A new batch may not be scheduled while the current one is active.
func (b *Batch) Active() bool {
	if b == nil {
		return false
	}
	for _, c := range b.Calls {
		if c.Status == StatusExecuting || c.Status == StatusAwaitingApproval {
			return true
		}
	}
	return false
}

// Settled reports whether every call has left the validating, executing, and
// awaiting states, i.e. the batch is ready for its scheduled calls to start
// together.
func (b *Batch) Settled() bool {
	for _, c := range b.Calls {
		switch c.Status {
		case StatusValidating, StatusExecuting, StatusAwaitingApproval:
			return false
		}
	}
	return true
}

// AllTerminal reports whether every call reached a final state.
func (b *Batch) AllTerminal() bool {
	for _, c := range b.Calls {
		if !c.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// AllCancelled reports whether every model-initiated call was cancelled.
// Client-initiated calls don't count: their responses never reach the model.
func (b *Batch) AllCancelled() bool {
	sawModelCall := false
	for _, c := range b.Calls {
		if c.IsClientInitiated {
			continue
		}
		sawModelCall = true
		if c.Status != StatusCancelled {
			return false
		}
	}
	return sawModelCall
}

// snapshots builds the consumer view of the whole batch in emission order.
func (b *Batch) snapshots() []ToolCallSnapshot {
	out := make([]ToolCallSnapshot, len(b.Calls))
	for i, c := range b.Calls {
		out[i] = c.snapshot()
	}
	return out
}
