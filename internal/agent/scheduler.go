// Package agent contains the turn scheduler and its collaborators: the
// stream demultiplexer, the tool call manager with its approval policy, and
// the continuation machinery that re-enters the model with tool results.
//
// One Submit drives one turn:
//
//	user input ─► dispatch ─► compression check ─► model stream ─► demux
//	      ▲                                            │
//	      │                        text/thought/usage  │  function calls
//	      │                              to events     ▼
//	      └── continuation ◄── responses ◄── tool call manager
//
// The scheduler is single-threaded cooperative: every state transition for a
// session happens on the turn goroutine. Tool executions and the editor
// subprocess run in parallel and re-enter through channels.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kepvey/drover/internal/chat"
	"github.com/kepvey/drover/pkg/genai"
)

// MaxTurns bounds the continuation loop within one submission.
const MaxTurns = 100

const (
	cancelledInfo      = "User cancelled the request."
	continuationPrompt = "Please continue."
)

// CommandResult is what a slash-command processor returns.
type CommandResult struct {
	// Handled consumes the input silently.
	Handled bool

	// ScheduleTool requests a single client-initiated tool call.
	ScheduleTool bool
	ToolName     string
	ToolArgs     map[string]any
}

// CommandProcessor handles inputs beginning with "/" or "?". A nil result
// lets the scheduler treat the input as ordinary model input.
type CommandProcessor interface {
	Process(ctx context.Context, query string) (*CommandResult, error)
}

// ShellPassthrough handles inputs in shell mode.
type ShellPassthrough interface {
	// Active reports whether shell mode is on.
	Active() bool

	// Run executes the raw input as a shell line.
	Run(ctx context.Context, query string) error
}

// AtExpander rewrites @path references into a composite query.
type AtExpander interface {
	Expand(ctx context.Context, query string) (string, error)
}

// MemoryRefresher is signalled after a successful save_memory call.
type MemoryRefresher interface {
	Refresh(ctx context.Context) error
}

// SchedulerOptions wires a Scheduler. Session and Manager are required; the
// dispatch collaborators are optional.
type SchedulerOptions struct {
	Session *chat.Session
	Manager *Manager

	Commands CommandProcessor
	Shell    ShellPassthrough
	At       AtExpander
	Memory   MemoryRefresher

	// MaxTurns overrides the continuation budget. Zero means MaxTurns.
	MaxTurns int

	Logger  *slog.Logger
	Metrics *Metrics
}

// Scheduler drives user turns to completion.
type Scheduler struct {
	session *chat.Session
	manager *Manager

	commands CommandProcessor
	shell    ShellPassthrough
	at       AtExpander
	memory   MemoryRefresher

	maxTurns int
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer

	active          atomic.Bool
	memorySignalled map[string]bool
}

// NewScheduler builds a scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = MaxTurns
	}
	return &Scheduler{
		session:         opts.Session,
		manager:         opts.Manager,
		commands:        opts.Commands,
		shell:           opts.Shell,
		at:              opts.At,
		memory:          opts.Memory,
		maxTurns:        maxTurns,
		logger:          logger,
		metrics:         opts.Metrics,
		tracer:          otel.Tracer("drover/agent"),
		memorySignalled: make(map[string]bool),
	}
}

// Submit starts one turn for the given user query. The returned channel
// carries the turn's events and closes after EventTurnComplete. A second
// Submit while a turn is in flight fails with ErrTurnActive.
func (s *Scheduler) Submit(ctx context.Context, query string) (<-chan Event, error) {
	if !s.active.CompareAndSwap(false, true) {
		return nil, ErrTurnActive
	}

	events := make(chan Event)
	go func() {
		defer s.active.Store(false)
		defer close(events)

		emit := func(e Event) {
			select {
			case events <- e:
			case <-ctx.Done():
				// Consumer gone; events past this point are dropped, the
				// turn still winds down cleanly.
			}
		}
		s.runTurn(ctx, query, emit)
		emit(Event{Kind: EventTurnComplete})
	}()
	return events, nil
}

// runTurn executes the dispatch, compression, stream, tools, continuation
// cycle for one submission.
func (s *Scheduler) runTurn(ctx context.Context, query string, emit func(Event)) {
	ctx, span := s.tracer.Start(ctx, "agent.turn")
	defer span.End()

	input, done := s.dispatch(ctx, query, emit)
	if done {
		return
	}

	if snap, err := s.session.TryCompress(ctx, false); err != nil {
		s.logger.Warn("compression check failed", "error", err)
	} else if snap != nil {
		s.metrics.ObserveCompression()
		emit(Event{Kind: EventChatCompressed, Compression: snap})
	}

	var lastUsage *genai.UsageMetadata

	for turn := 0; turn < s.maxTurns; turn++ {
		result := s.streamOnce(ctx, input, turn, emit)
		if result.usage != nil {
			lastUsage = result.usage
		}
		if result.terminate {
			s.metrics.ObserveTurn(result.outcome)
			return
		}

		if len(result.calls) > 0 {
			next, ok := s.runBatch(ctx, result.calls, turn, emit)
			if !ok {
				s.metrics.ObserveTurn("cancelled_tools")
				return
			}
			input = next
			continue
		}

		// No tool calls: ask whether the model intends to continue.
		if ctx.Err() != nil {
			s.metrics.ObserveTurn("cancelled")
			return
		}
		if checkNextSpeaker(ctx, s.session) != SpeakerModel {
			s.metrics.ObserveTurn("complete")
			return
		}
		input = genai.NewUserText(continuationPrompt)
	}

	// Budget exhausted: surface the last usage so the consumer can account
	// for the turn, then stop cleanly.
	s.logger.Warn("turn continuation budget exhausted",
		"error", ErrMaxTurns, "max_turns", s.maxTurns)
	if lastUsage != nil {
		emit(Event{Kind: EventUsage, Usage: lastUsage})
	}
	s.metrics.ObserveTurn("budget_exhausted")
}

// dispatch routes the raw query. done is true when the turn ends without a
// model call.
func (s *Scheduler) dispatch(ctx context.Context, query string, emit func(Event)) (genai.Content, bool) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return genai.Content{}, true
	}

	if s.commands != nil && (strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "?")) {
		res, err := s.commands.Process(ctx, trimmed)
		if err != nil {
			emit(Event{Kind: EventError, Err: &TurnError{Phase: PhaseDispatch, Cause: err}})
			return genai.Content{}, true
		}
		switch {
		case res == nil:
			// Fall through to ordinary input.
		case res.ScheduleTool:
			s.runClientCall(ctx, res.ToolName, res.ToolArgs, emit)
			return genai.Content{}, true
		case res.Handled:
			return genai.Content{}, true
		}
	}

	if s.shell != nil && s.shell.Active() && strings.HasPrefix(trimmed, "!") {
		if err := s.shell.Run(ctx, strings.TrimPrefix(trimmed, "!")); err != nil {
			emit(Event{Kind: EventError, Err: &TurnError{Phase: PhaseDispatch, Cause: err}})
		}
		return genai.Content{}, true
	}

	if s.at != nil && strings.Contains(trimmed, "@") {
		expanded, err := s.at.Expand(ctx, trimmed)
		if err != nil {
			s.logger.Warn("at-command expansion failed, using raw query", "error", err)
		} else if expanded != "" {
			trimmed = expanded
		}
	}

	return genai.NewUserText(trimmed), false
}

// streamResult is the outcome of one model stream invocation.
type streamResult struct {
	calls     []*ToolCall
	usage     *genai.UsageMetadata
	terminate bool
	outcome   string
}

// streamOnce performs one model stream, forwarding text through the buffered
// split policy and accumulating function calls into a pending batch.
func (s *Scheduler) streamOnce(ctx context.Context, input genai.Content, turn int, emit func(Event)) streamResult {
	ctx, span := s.tracer.Start(ctx, "agent.stream",
		trace.WithAttributes(attribute.Int("turn", turn)))
	defer span.End()
	s.metrics.ObserveModelCall()

	stream, err := s.session.SendStream(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			s.emitCancelled(emit)
			return streamResult{terminate: true, outcome: "cancelled"}
		}
		emit(Event{Kind: EventError, Err: &TurnError{Phase: PhaseStream, Turn: turn, Cause: err}})
		return streamResult{terminate: true, outcome: "stream_error"}
	}

	var (
		buf    textBuffer
		result streamResult
	)
	for ev := range Demux(ctx, stream) {
		switch ev.Kind {
		case StreamContent:
			buf.Append(ev.Text)
			if flushed := buf.Flush(); flushed != "" {
				emit(Event{Kind: EventContent, Text: flushed})
			}

		case StreamThought:
			emit(Event{Kind: EventThought, Thought: ev.Thought})

		case StreamFunctionCall:
			span.AddEvent("function_call", trace.WithAttributes(
				attribute.String("tool", ev.Call.Name)))
			result.calls = append(result.calls, &ToolCall{
				ID:     ev.Call.ID,
				Name:   ev.Call.Name,
				Args:   ev.Call.Args,
				Status: StatusValidating,
			})

		case StreamUsage:
			result.usage = ev.Usage
			s.metrics.ObserveUsage(ev.Usage.PromptTokens, ev.Usage.CandidatesTokens)
			emit(Event{Kind: EventUsage, Usage: ev.Usage})

		case StreamError:
			emit(Event{Kind: EventError, Err: &TurnError{Phase: PhaseStream, Turn: turn, Cause: ev.Err}})
			result.terminate = true
			result.outcome = "stream_error"
			return result

		case StreamUserCancelled:
			// Pending buffered text is discarded on cancellation.
			s.emitCancelled(emit)
			result.terminate = true
			result.outcome = "cancelled"
			return result
		}
	}

	if tail := buf.Drain(); tail != "" {
		emit(Event{Kind: EventContent, Text: tail})
	}
	return result
}

// runBatch drives one tool batch to terminal and builds the continuation
// input. ok is false when the turn must end without re-entering the model.
func (s *Scheduler) runBatch(ctx context.Context, calls []*ToolCall, turn int, emit func(Event)) (genai.Content, bool) {
	ctx, span := s.tracer.Start(ctx, "agent.tools",
		trace.WithAttributes(attribute.Int("batch_size", len(calls)), attribute.Int("turn", turn)))
	defer span.End()

	batch, err := s.manager.Schedule(calls)
	if err != nil {
		// Scheduling failures (duplicate ids, active batch) end the turn.
		s.logger.Error("tool batch rejected", "error", err)
		emit(Event{Kind: EventError, Err: &TurnError{Phase: PhaseTools, Turn: turn, Cause: err}})
		return genai.Content{}, false
	}

	s.manager.Run(ctx, batch, emit)

	for _, call := range batch.Calls {
		if call.IsClientInitiated {
			call.MarkResponseSubmitted()
		}
		s.signalMemory(ctx, call)
	}

	if batch.AllCancelled() {
		// The model sees the cancellations on the next submission; this
		// turn ends here.
		s.session.AppendUser(responseContent(batch))
		for _, call := range batch.Calls {
			call.MarkResponseSubmitted()
		}
		emit(Event{Kind: EventInfo, Text: cancelledInfo})
		return genai.Content{}, false
	}

	response := responseContent(batch)
	if len(response.Parts) == 0 {
		// Only client-initiated calls; nothing goes back to the model.
		return genai.Content{}, false
	}
	for _, call := range batch.Calls {
		if !call.IsClientInitiated {
			call.MarkResponseSubmitted()
		}
	}
	return response, true
}

// responseContent collects the model-initiated function responses in the
// order the calls were emitted, regardless of completion order.
func responseContent(batch *Batch) genai.Content {
	var parts []genai.Part
	for _, call := range batch.Calls {
		if call.IsClientInitiated {
			continue
		}
		parts = append(parts, call.Response...)
	}
	return genai.Content{Role: genai.RoleUser, Parts: parts}
}

// runClientCall executes a single slash-command-initiated tool call. Its
// response is never fed back to the model.
func (s *Scheduler) runClientCall(ctx context.Context, toolName string, args map[string]any, emit func(Event)) {
	call := &ToolCall{
		ID:                synthesizeCallID(toolName),
		Name:              toolName,
		Args:              args,
		Status:            StatusValidating,
		IsClientInitiated: true,
	}
	batch, err := s.manager.Schedule([]*ToolCall{call})
	if err != nil {
		emit(Event{Kind: EventError, Err: &TurnError{Phase: PhaseDispatch, Cause: err}})
		return
	}
	s.manager.Run(ctx, batch, emit)
	call.MarkResponseSubmitted()
	s.signalMemory(ctx, call)
}

// signalMemory tells the refresher about a completed save_memory call,
// at most once per call id.
func (s *Scheduler) signalMemory(ctx context.Context, call *ToolCall) {
	if call.Name != "save_memory" || call.Status != StatusSuccess || s.memorySignalled[call.ID] {
		return
	}
	s.memorySignalled[call.ID] = true
	if s.memory == nil {
		return
	}
	if err := s.memory.Refresh(ctx); err != nil {
		s.logger.Warn("memory refresh failed", "error", err)
	}
}

func (s *Scheduler) emitCancelled(emit func(Event)) {
	emit(Event{Kind: EventUserCancelled})
	emit(Event{Kind: EventInfo, Text: cancelledInfo})
}
