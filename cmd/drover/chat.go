package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kepvey/drover/internal/agent"
	"github.com/kepvey/drover/internal/tools"
)

func buildChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive agent session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()
			return runChat(cmd.Context(), a)
		},
	}
}

// runChat is the interactive read-submit-render loop. Ctrl-C cancels the turn
// in flight; EOF or /quit ends the session.
func runChat(ctx context.Context, a *app) error {
	in := bufio.NewReader(os.Stdin)
	fmt.Printf("drover %s (model %s). /quit to exit.\n", version, a.session.Model())

	for {
		fmt.Print("> ")
		line, err := in.ReadString('\n')
		if err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		query := strings.TrimSpace(line)
		if query == "/quit" || query == "/exit" {
			return nil
		}
		if query == "" {
			continue
		}
		if query == "!" {
			a.shell.SetActive(!a.shell.Active())
			if a.shell.Active() {
				fmt.Println("shell passthrough on (! lines run locally)")
			} else {
				fmt.Println("shell passthrough off")
			}
			continue
		}

		if err := runOneTurn(ctx, a, in, query); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		a.saveTranscript(ctx)
	}
}

func runOneTurn(ctx context.Context, a *app, in *bufio.Reader, query string) error {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// First Ctrl-C cancels the turn; the loop survives.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, syscall.SIGINT)
	defer signal.Stop(interrupts)
	go func() {
		select {
		case <-interrupts:
			cancel()
		case <-turnCtx.Done():
		}
	}()

	events, err := a.scheduler.Submit(turnCtx, query)
	if err != nil {
		return err
	}
	for ev := range events {
		renderEvent(in, ev)
	}
	return nil
}

// renderEvent writes one scheduler event to the terminal.
func renderEvent(in *bufio.Reader, ev agent.Event) {
	switch ev.Kind {
	case agent.EventContent:
		fmt.Print(ev.Text)

	case agent.EventThought:
		if ev.Thought.Subject != "" {
			fmt.Printf("[%s]\n", ev.Thought.Subject)
		}

	case agent.EventToolCallsUpdated:
		for _, call := range ev.ToolCalls {
			switch call.Status {
			case agent.StatusExecuting:
				if call.LiveOutput != "" {
					fmt.Printf("  %s | %s\n", call.Name, lastLine(call.LiveOutput))
				}
			case agent.StatusSuccess, agent.StatusError, agent.StatusCancelled:
				renderTerminalCall(call)
			}
		}

	case agent.EventConfirmation:
		ev.Confirmation.Respond(promptConfirmation(in, ev.Confirmation))

	case agent.EventChatCompressed:
		fmt.Printf("(history compressed: %d -> %d tokens)\n",
			ev.Compression.OriginalTokenCount, ev.Compression.NewTokenCount)

	case agent.EventInfo:
		fmt.Println(ev.Text)

	case agent.EventError:
		fmt.Fprintln(os.Stderr, "error:", ev.Err)

	case agent.EventUserCancelled:
		fmt.Println("^C")

	case agent.EventUsage, agent.EventTurnComplete:
		// Silent in the terminal; surfaced through metrics.
	}
}

var renderedCalls = map[string]bool{}

func renderTerminalCall(call agent.ToolCallSnapshot) {
	if renderedCalls[call.ID] {
		return
	}
	renderedCalls[call.ID] = true
	switch call.Status {
	case agent.StatusSuccess:
		fmt.Printf("  %s done\n", call.Description)
		if diff, ok := call.Display.(*tools.FileDiff); ok {
			fmt.Println(diff.Diff)
		}
	case agent.StatusError:
		fmt.Printf("  %s failed: %v\n", call.Description, call.Err)
	case agent.StatusCancelled:
		fmt.Printf("  %s cancelled\n", call.Description)
	}
}

// promptConfirmation renders an approval prompt and maps the reply onto an
// outcome.
func promptConfirmation(in *bufio.Reader, req *agent.ConfirmationRequest) tools.ConfirmationOutcome {
	details := req.Details
	switch details.Kind {
	case tools.ConfirmEdit:
		fmt.Printf("\n%s wants to edit %s:\n%s\n", req.ToolName, details.FileName, details.FileDiff)
	case tools.ConfirmExec:
		fmt.Printf("\n%s wants to run: %s\n", req.ToolName, details.Command)
	case tools.ConfirmMCP:
		fmt.Printf("\nserver %s wants to call %s\n", details.ServerName, details.ToolName)
	default:
		fmt.Printf("\n%s requests approval: %s\n", req.ToolName, details.Prompt)
	}

	for {
		fmt.Print("[y]es once / [a]lways / [e]dit first / [n]o: ")
		line, err := in.ReadString('\n')
		if err != nil {
			return tools.OutcomeCancel
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return tools.OutcomeProceedOnce
		case "a", "always":
			return tools.OutcomeProceedAlways
		case "e", "edit":
			return tools.OutcomeModifyWithEditor
		case "n", "no":
			return tools.OutcomeCancel
		}
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return lines[len(lines)-1]
}
