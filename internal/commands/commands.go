// Package commands routes slash commands typed instead of model input.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kepvey/drover/internal/agent"
	"github.com/kepvey/drover/internal/chat"
)

// Sink receives user-facing command output. The CLI prints it.
type Sink func(text string)

// Processor implements the scheduler's CommandProcessor over a fixed command
// set. Unknown commands fall through to the model as ordinary input.
type Processor struct {
	session *chat.Session
	emit    Sink
	logger  *slog.Logger
}

// New builds a processor bound to the session.
func New(session *chat.Session, emit Sink, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if emit == nil {
		emit = func(string) {}
	}
	return &Processor{session: session, emit: emit, logger: logger}
}

// Process handles one slash command. A nil result means the input is not a
// command and should go to the model.
func (p *Processor) Process(ctx context.Context, query string) (*agent.CommandResult, error) {
	name, rest, _ := strings.Cut(strings.TrimPrefix(query, "/"), " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "help", "?":
		p.emit(helpText)
		return &agent.CommandResult{Handled: true}, nil

	case "clear":
		p.session.Clear()
		p.emit("History cleared.")
		return &agent.CommandResult{Handled: true}, nil

	case "compress":
		snap, err := p.session.TryCompress(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("compress history: %w", err)
		}
		if snap == nil {
			p.emit("Nothing to compress.")
		} else {
			p.emit(fmt.Sprintf("Compressed %d -> %d tokens.", snap.OriginalTokenCount, snap.NewTokenCount))
		}
		return &agent.CommandResult{Handled: true}, nil

	case "memory":
		return p.memory(rest)

	case "model":
		if rest == "" {
			p.emit("Current model: " + p.session.Model())
		} else {
			p.session.SetModel(rest)
			p.emit("Switched to " + rest + ".")
		}
		return &agent.CommandResult{Handled: true}, nil
	}

	// Not ours; the scheduler sends it to the model.
	return nil, nil
}

// memory handles the /memory subcommands.
func (p *Processor) memory(rest string) (*agent.CommandResult, error) {
	sub, arg, _ := strings.Cut(rest, " ")
	arg = strings.TrimSpace(arg)

	switch sub {
	case "add":
		if arg == "" {
			return nil, fmt.Errorf("usage: /memory add <fact>")
		}
		return &agent.CommandResult{
			ScheduleTool: true,
			ToolName:     "save_memory",
			ToolArgs:     map[string]any{"fact": arg},
		}, nil
	default:
		return nil, fmt.Errorf("unknown memory command %q", sub)
	}
}

const helpText = `Commands:
  /help              show this help
  /clear             clear the conversation history
  /compress          force history compression
  /memory add <fact> remember a fact
  /model [name]      show or switch the model
  /quit              exit`
