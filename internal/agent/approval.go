package agent

import (
	"sync"

	"github.com/kepvey/drover/internal/tools"
)

// ApprovalMode is the session-wide confirmation policy.
type ApprovalMode string

const (
	// ApprovalDefault prompts for every confirmation a tool requests.
	ApprovalDefault ApprovalMode = "default"

	// ApprovalAutoEdit auto-approves edit confirmations only.
	ApprovalAutoEdit ApprovalMode = "auto_edit"

	// ApprovalYOLO suppresses all confirmation prompts.
	ApprovalYOLO ApprovalMode = "yolo"
)

// ApprovalPolicy decides whether a confirmation prompt can be skipped and
// remembers "always proceed" grants at session, server, tool, and shell
// root-command scope.
type ApprovalPolicy struct {
	mu   sync.Mutex
	mode ApprovalMode

	sessionAlways bool
	servers       map[string]bool
	toolNames     map[string]bool
	rootCommands  map[string]bool
}

// NewApprovalPolicy builds a policy in the given mode.
func NewApprovalPolicy(mode ApprovalMode) *ApprovalPolicy {
	if mode == "" {
		mode = ApprovalDefault
	}
	return &ApprovalPolicy{
		mode:         mode,
		servers:      make(map[string]bool),
		toolNames:    make(map[string]bool),
		rootCommands: make(map[string]bool),
	}
}

// Mode returns the current approval mode.
func (p *ApprovalPolicy) Mode() ApprovalMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SetMode switches the approval mode.
func (p *ApprovalPolicy) SetMode(mode ApprovalMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
}

// Bypass reports whether the given confirmation for toolName (discovered
// from serverName, empty for manual tools) can be skipped without prompting.
func (p *ApprovalPolicy) Bypass(toolName, serverName string, conf *tools.Confirmation) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mode == ApprovalYOLO {
		return true
	}
	if p.mode == ApprovalAutoEdit && conf.Kind == tools.ConfirmEdit {
		return true
	}
	if p.sessionAlways {
		return true
	}
	if serverName != "" && p.servers[serverName] {
		return true
	}
	if p.toolNames[toolName] {
		return true
	}
	if conf.Kind == tools.ConfirmExec && conf.RootCommand != "" && p.rootCommands[conf.RootCommand] {
		return true
	}
	return false
}

// Remember records an "always proceed" outcome at the scope the outcome
// names. Proceed-once and cancel outcomes record nothing.
func (p *ApprovalPolicy) Remember(toolName, serverName string, conf *tools.Confirmation, outcome tools.ConfirmationOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch outcome {
	case tools.OutcomeProceedAlways:
		if conf != nil && conf.Kind == tools.ConfirmExec && conf.RootCommand != "" {
			p.rootCommands[conf.RootCommand] = true
			return
		}
		p.sessionAlways = true
	case tools.OutcomeProceedAlwaysServer:
		if serverName != "" {
			p.servers[serverName] = true
		}
	case tools.OutcomeProceedAlwaysTool:
		p.toolNames[toolName] = true
	}
}
