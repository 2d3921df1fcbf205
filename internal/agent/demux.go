package agent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/kepvey/drover/internal/chat"
	"github.com/kepvey/drover/pkg/genai"
)

// StreamEventKind discriminates demultiplexed model stream events.
type StreamEventKind string

const (
	StreamContent       StreamEventKind = "content"
	StreamThought       StreamEventKind = "thought"
	StreamFunctionCall  StreamEventKind = "function_call"
	StreamUsage         StreamEventKind = "usage"
	StreamError         StreamEventKind = "error"
	StreamUserCancelled StreamEventKind = "user_cancelled"
)

// StreamEvent is one typed event from a model stream.
type StreamEvent struct {
	Kind    StreamEventKind
	Text    string
	Thought *Thought
	Call    *genai.FunctionCall
	Usage   *genai.UsageMetadata
	Err     error
}

// Demux converts a raw model chunk stream into typed stream events. On
// cancellation it emits exactly one UserCancelled event and stops. The
// returned channel closes when the stream ends.
func Demux(ctx context.Context, chunks <-chan *chat.Chunk) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				out <- StreamEvent{Kind: StreamUserCancelled}
				return
			case chunk, ok := <-chunks:
				if !ok {
					return
				}
				for _, ev := range demuxChunk(chunk) {
					select {
					case out <- ev:
					case <-ctx.Done():
						out <- StreamEvent{Kind: StreamUserCancelled}
						return
					}
				}
			}
		}
	}()
	return out
}

func demuxChunk(chunk *chat.Chunk) []StreamEvent {
	if chunk.Err != nil {
		return []StreamEvent{{Kind: StreamError, Err: chunk.Err}}
	}
	if chunk.Usage != nil {
		return []StreamEvent{{Kind: StreamUsage, Usage: chunk.Usage}}
	}
	if chunk.Content == nil {
		return nil
	}

	var events []StreamEvent
	for _, p := range chunk.Content.Parts {
		switch {
		case p.Thought:
			thought := parseThought(p.Text)
			events = append(events, StreamEvent{Kind: StreamThought, Thought: &thought})
		case p.FunctionCall != nil:
			call := *p.FunctionCall
			if call.ID == "" {
				call.ID = synthesizeCallID(call.Name)
			}
			events = append(events, StreamEvent{Kind: StreamFunctionCall, Call: &call})
		case p.Text != "":
			events = append(events, StreamEvent{Kind: StreamContent, Text: p.Text})
		}
	}
	return events
}

// parseThought splits a raw thought into subject and description. The
// subject is the first substring wrapped in **...**; the description is the
// remainder with the wrapper stripped. This is a wire convention of the
// model, kept in one place because it is textual and fragile.
func parseThought(raw string) Thought {
	start := strings.Index(raw, "**")
	if start < 0 {
		return Thought{Description: strings.TrimSpace(raw)}
	}
	rest := raw[start+2:]
	end := strings.Index(rest, "**")
	if end < 0 {
		return Thought{Description: strings.TrimSpace(raw)}
	}

	subject := strings.TrimSpace(rest[:end])
	description := raw[:start] + rest[end+2:]
	return Thought{
		Subject:     subject,
		Description: strings.TrimSpace(description),
	}
}

// synthesizeCallID builds an id for function calls that arrived without one:
// <toolName>-<millis>-<6 hex chars>.
func synthesizeCallID(toolName string) string {
	var buf [3]byte
	rand.Read(buf[:])
	return toolName + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + hex.EncodeToString(buf[:])
}
