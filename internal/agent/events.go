package agent

import (
	"github.com/kepvey/drover/internal/chat"
	"github.com/kepvey/drover/internal/tools"
	"github.com/kepvey/drover/pkg/genai"
)

// EventKind discriminates scheduler events.
type EventKind string

const (
	// EventContent is a chunk of model response text.
	EventContent EventKind = "content"

	// EventThought is a parsed model reasoning summary.
	EventThought EventKind = "thought"

	// EventUsage reports token accounting for a model call.
	EventUsage EventKind = "usage"

	// EventToolCallsUpdated carries a snapshot of the current batch.
	EventToolCallsUpdated EventKind = "tool_calls_updated"

	// EventConfirmation asks the consumer to resolve an approval prompt.
	EventConfirmation EventKind = "confirmation"

	// EventChatCompressed reports a history compression.
	EventChatCompressed EventKind = "chat_compressed"

	// EventInfo is a user-facing informational line.
	EventInfo EventKind = "info"

	// EventError reports a turn-terminating failure.
	EventError EventKind = "error"

	// EventUserCancelled reports cancellation of the turn.
	EventUserCancelled EventKind = "user_cancelled"

	// EventTurnComplete is the final event of every submission.
	EventTurnComplete EventKind = "turn_complete"
)

// Thought is a parsed reasoning summary from the model.
type Thought struct {
	Subject     string
	Description string
}

// Event is one unit of the scheduler's output stream. Kind selects which
// payload fields are set.
type Event struct {
	Kind EventKind

	// Text carries content and info payloads.
	Text string

	Thought      *Thought
	Usage        *genai.UsageMetadata
	Err          error
	Compression  *chat.CompressionSnapshot
	ToolCalls    []ToolCallSnapshot
	Confirmation *ConfirmationRequest
}

// ToolCallSnapshot is an immutable view of one tool call for consumers.
type ToolCallSnapshot struct {
	ID          string
	Name        string
	Description string
	Status      Status
	LiveOutput  string
	Display     any
	Err         error
}

// ConfirmationRequest surfaces an approval prompt. The consumer must call
// Respond exactly once; the scheduler blocks the call (not the session) until
// it does or the turn is cancelled.
type ConfirmationRequest struct {
	CallID   string
	ToolName string
	Details  *tools.Confirmation

	// Respond delivers the user's decision. Safe to call from any
	// goroutine; only the first call counts.
	Respond func(outcome tools.ConfirmationOutcome)
}
