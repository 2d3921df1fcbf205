package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kepvey/drover/internal/tools"
)

// Checkpointer snapshots the filesystem and conversation before a restorable
// edit is approved, so /restore can rewind both.
type Checkpointer interface {
	Snapshot(ctx context.Context, filePath, toolName string, args map[string]any) error
}

// EditCorrector is the black-box pre-processor that repairs fuzzy replace
// arguments before scheduling. Its internals (an auxiliary model call) are
// outside this package.
type EditCorrector func(ctx context.Context, args map[string]any) (map[string]any, error)

// EditorLauncher opens proposed content in an external editor and returns
// the edited result. *tools.Editor is the production implementation.
type EditorLauncher interface {
	Edit(ctx context.Context, fileName, currentContent, proposedContent string) (string, error)
}

// restorableTools name the calls that trigger a checkpoint when they reach
// awaiting_approval.
var restorableTools = map[string]bool{
	"replace":    true,
	"write_file": true,
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Registry *tools.Registry
	Policy   *ApprovalPolicy
	Editor   EditorLauncher

	// Checkpointer may be nil; checkpointing is then disabled.
	Checkpointer Checkpointer

	// Corrector may be nil; replace calls are then scheduled as-is.
	Corrector EditCorrector

	// MaxParallel bounds concurrent tool executions within one batch.
	// Zero means unbounded.
	MaxParallel int

	Logger  *slog.Logger
	Metrics *Metrics
}

// Manager drives tool call batches through the state machine: validation,
// approval gating, bounded parallel execution, and terminal bookkeeping.
// All state mutations happen on the goroutine that calls Run; executor
// goroutines report back over a channel.
type Manager struct {
	registry     *tools.Registry
	policy       *ApprovalPolicy
	editor       EditorLauncher
	checkpointer Checkpointer
	corrector    EditCorrector
	maxParallel  int
	logger       *slog.Logger
	metrics      *Metrics

	seenIDs map[string]bool
	current *Batch
}

// NewManager builds a manager.
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	policy := opts.Policy
	if policy == nil {
		policy = NewApprovalPolicy(ApprovalDefault)
	}
	editor := opts.Editor
	if editor == nil {
		editor = &tools.Editor{}
	}
	return &Manager{
		registry:     opts.Registry,
		policy:       policy,
		editor:       editor,
		checkpointer: opts.Checkpointer,
		corrector:    opts.Corrector,
		maxParallel:  opts.MaxParallel,
		logger:       logger,
		metrics:      opts.Metrics,
		seenIDs:      make(map[string]bool),
	}
}

// Schedule opens a new batch. It fails if the previous batch still has calls
// executing or awaiting approval, or if a call id repeats within the
// session.
func (m *Manager) Schedule(calls []*ToolCall) (*Batch, error) {
	if m.current.Active() {
		return nil, ErrBatchActive
	}
	fresh := make(map[string]bool, len(calls))
	for _, c := range calls {
		if m.seenIDs[c.ID] || fresh[c.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCallID, c.ID)
		}
		fresh[c.ID] = true
	}
	for _, c := range calls {
		m.seenIDs[c.ID] = true
		c.Status = StatusValidating
	}
	m.current = &Batch{Calls: calls}
	return m.current, nil
}

// Run drives the batch to all-terminal. emit receives events in the order
// the manager observes them; approval prompts suspend the batch until the
// consumer responds or ctx is cancelled.
func (m *Manager) Run(ctx context.Context, batch *Batch, emit func(Event)) {
	m.classify(ctx, batch, emit)
	m.driveApprovals(ctx, batch, emit)
	m.execute(ctx, batch, emit)
}

// classify moves every validating call to scheduled, awaiting_approval, or a
// terminal error state.
func (m *Manager) classify(ctx context.Context, batch *Batch, emit func(Event)) {
	for _, call := range batch.Calls {
		if call.Status != StatusValidating {
			continue
		}

		tool, ok := m.registry.Lookup(call.Name)
		if !ok {
			call.fail(NewToolError(call.Name, ErrToolNotFound).
				WithMessage(fmt.Sprintf("Tool %q not found in registry.", call.Name)).
				WithCallID(call.ID))
			m.observeCall(call)
			emit(Event{Kind: EventToolCallsUpdated, ToolCalls: batch.snapshots()})
			continue
		}
		call.Tool = tool

		if m.corrector != nil && call.Name == "replace" {
			corrected, err := m.corrector(ctx, call.Args)
			if err != nil {
				m.logger.Warn("edit corrector failed, using original args",
					"call_id", call.ID, "error", err)
			} else if corrected != nil {
				call.Args = corrected
			}
		}

		if err := tool.ValidateParams(call.Args); err != nil {
			call.fail(NewToolError(call.Name, err).WithType(ToolErrorInvalidParams).WithCallID(call.ID))
			m.observeCall(call)
			emit(Event{Kind: EventToolCallsUpdated, ToolCalls: batch.snapshots()})
			continue
		}

		if m.policy.Mode() == ApprovalYOLO {
			call.Status = StatusScheduled
			emit(Event{Kind: EventToolCallsUpdated, ToolCalls: batch.snapshots()})
			continue
		}

		conf, err := tool.ShouldConfirm(ctx, call.Args)
		if err != nil {
			if ctx.Err() != nil {
				call.cancel("User cancelled the request")
			} else {
				call.fail(NewToolError(call.Name, err).WithCallID(call.ID))
			}
			m.observeCall(call)
			emit(Event{Kind: EventToolCallsUpdated, ToolCalls: batch.snapshots()})
			continue
		}

		if conf == nil {
			call.Status = StatusScheduled
			emit(Event{Kind: EventToolCallsUpdated, ToolCalls: batch.snapshots()})
			continue
		}

		server, _ := m.registry.ServerOf(call.Name)
		if m.policy.Bypass(call.Name, server, conf) {
			m.confirmHook(ctx, conf, tools.OutcomeProceedOnce)
			call.Status = StatusScheduled
			emit(Event{Kind: EventToolCallsUpdated, ToolCalls: batch.snapshots()})
			continue
		}

		call.Confirmation = conf
		call.Status = StatusAwaitingApproval
		m.maybeCheckpoint(ctx, call)
		emit(Event{Kind: EventToolCallsUpdated, ToolCalls: batch.snapshots()})
	}
}

// driveApprovals resolves awaiting calls one at a time, in emission order.
func (m *Manager) driveApprovals(ctx context.Context, batch *Batch, emit func(Event)) {
	for _, call := range batch.Calls {
		for call.Status == StatusAwaitingApproval {
			outcome, ok := m.promptOnce(ctx, call, emit)
			if !ok {
				// Turn cancelled while waiting.
				call.cancel("User cancelled the request")
				m.observeCall(call)
				emit(Event{Kind: EventToolCallsUpdated, ToolCalls: batch.snapshots()})
				break
			}
			m.applyOutcome(ctx, call, outcome)
			emit(Event{Kind: EventToolCallsUpdated, ToolCalls: batch.snapshots()})
		}
	}
}

// promptOnce emits one confirmation request and waits for the decision or
// cancellation.
func (m *Manager) promptOnce(ctx context.Context, call *ToolCall, emit func(Event)) (tools.ConfirmationOutcome, bool) {
	decision := make(chan tools.ConfirmationOutcome, 1)
	emit(Event{
		Kind: EventConfirmation,
		Confirmation: &ConfirmationRequest{
			CallID:   call.ID,
			ToolName: call.Name,
			Details:  call.Confirmation,
			Respond: func(outcome tools.ConfirmationOutcome) {
				select {
				case decision <- outcome:
				default:
				}
			},
		},
	})

	select {
	case <-ctx.Done():
		return "", false
	case outcome := <-decision:
		return outcome, true
	}
}

func (m *Manager) applyOutcome(ctx context.Context, call *ToolCall, outcome tools.ConfirmationOutcome) {
	call.Outcome = outcome
	switch outcome {
	case tools.OutcomeCancel:
		m.confirmHook(ctx, call.Confirmation, outcome)
		call.cancel("User did not allow tool call")
		m.observeCall(call)

	case tools.OutcomeModifyWithEditor:
		if err := m.modifyInEditor(ctx, call); err != nil {
			m.logger.Warn("modify in editor failed, keeping original args",
				"call_id", call.ID, "error", err)
		}
		// Still awaiting approval; the refreshed prompt goes out on the
		// next loop iteration.

	default:
		server, _ := m.registry.ServerOf(call.Name)
		m.policy.Remember(call.Name, server, call.Confirmation, outcome)
		m.confirmHook(ctx, call.Confirmation, outcome)
		call.Status = StatusScheduled
	}
}

// modifyInEditor rewrites the call's args from user edits and refreshes the
// confirmation diff.
func (m *Manager) modifyInEditor(ctx context.Context, call *ToolCall) error {
	modifiable, ok := call.Tool.(tools.Modifiable)
	if !ok {
		return fmt.Errorf("tool %q does not support modification", call.Name)
	}
	mc := modifiable.ModifyContext()
	if mc == nil {
		return fmt.Errorf("tool %q returned no modify context", call.Name)
	}

	call.Confirmation.IsModifying = true
	defer func() { call.Confirmation.IsModifying = false }()

	current, err := mc.CurrentContent(call.Args)
	if err != nil {
		return err
	}
	proposed, err := mc.ProposedContent(call.Args)
	if err != nil {
		return err
	}

	edited, err := m.editor.Edit(ctx, mc.FilePath(call.Args), current, proposed)
	if err != nil {
		return err
	}

	call.Args = mc.UpdatedParams(current, edited, call.Args)

	conf, err := call.Tool.ShouldConfirm(ctx, call.Args)
	if err != nil {
		return err
	}
	if conf != nil {
		call.Confirmation = conf
	}
	return nil
}

// execUpdate is one message from an executor goroutine back to Run's
// goroutine.
type execUpdate struct {
	call   *ToolCall
	chunk  string
	isLive bool
	result *tools.Result
	err    error
}

// execute starts every scheduled call simultaneously and applies completions
// and live output on the manager's goroutine until all are terminal. The
// batch must have settled first: no call may still be validating or awaiting
// approval when the scheduled ones launch.
func (m *Manager) execute(ctx context.Context, batch *Batch, emit func(Event)) {
	if !batch.Settled() {
		return
	}
	var running []*ToolCall
	for _, call := range batch.Calls {
		if call.Status == StatusScheduled {
			running = append(running, call)
		}
	}
	if len(running) == 0 {
		return
	}

	for _, call := range running {
		call.Status = StatusExecuting
		call.StartTime = time.Now()
	}
	emit(Event{Kind: EventToolCallsUpdated, ToolCalls: batch.snapshots()})

	updates := make(chan execUpdate)
	var sem chan struct{}
	if m.maxParallel > 0 {
		sem = make(chan struct{}, m.maxParallel)
	}

	for _, call := range running {
		go func(call *ToolCall) {
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			var onLive func(string)
			if call.Tool.CanStreamOutput() {
				onLive = func(chunk string) {
					select {
					case updates <- execUpdate{call: call, chunk: chunk, isLive: true}:
					case <-ctx.Done():
					}
				}
			}

			result, err := m.executeOne(ctx, call, onLive)
			updates <- execUpdate{call: call, result: result, err: err}
		}(call)
	}

	remaining := len(running)
	for remaining > 0 {
		u := <-updates
		if u.isLive {
			u.call.LiveOutput = u.chunk
			emit(Event{Kind: EventToolCallsUpdated, ToolCalls: batch.snapshots()})
			continue
		}

		remaining--
		switch {
		case u.err != nil && (ctx.Err() != nil || errors.Is(u.err, context.Canceled)):
			u.call.cancel("User cancelled the request")
		case u.err != nil:
			u.call.fail(NewToolError(u.call.Name, u.err).WithCallID(u.call.ID))
		default:
			u.call.succeed(u.result)
		}
		m.observeCall(u.call)
		emit(Event{Kind: EventToolCallsUpdated, ToolCalls: batch.snapshots()})
	}
}

// executeOne invokes the tool, converting panics into errors so one bad tool
// cannot take down the scheduler.
func (m *Manager) executeOne(ctx context.Context, call *ToolCall, onLive func(string)) (result *tools.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %q panicked: %v", call.Name, r)
		}
	}()
	return call.Tool.Execute(ctx, call.Args, onLive)
}

// maybeCheckpoint snapshots restorable calls entering awaiting_approval.
func (m *Manager) maybeCheckpoint(ctx context.Context, call *ToolCall) {
	if m.checkpointer == nil || !restorableTools[call.Name] {
		return
	}
	filePath, _ := call.Args["file_path"].(string)
	if filePath == "" {
		return
	}
	if err := m.checkpointer.Snapshot(ctx, filePath, call.Name, call.Args); err != nil {
		m.logger.Warn("checkpoint snapshot failed", "call_id", call.ID, "error", err)
	}
}

func (m *Manager) confirmHook(ctx context.Context, conf *tools.Confirmation, outcome tools.ConfirmationOutcome) {
	if conf == nil || conf.OnConfirm == nil {
		return
	}
	if err := conf.OnConfirm(ctx, outcome); err != nil {
		m.logger.Warn("confirmation hook failed", "error", err)
	}
}

func (m *Manager) observeCall(call *ToolCall) {
	if m.metrics == nil {
		return
	}
	m.metrics.ObserveToolCall(call.Name, string(call.Status), time.Duration(call.DurationMS)*time.Millisecond)
}
