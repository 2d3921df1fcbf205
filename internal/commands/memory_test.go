package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kepvey/drover/internal/chat"
	"github.com/kepvey/drover/pkg/genai"
)

// recordingGen captures the requests the session builds so tests can inspect
// the system instruction.
type recordingGen struct {
	noopGen
	requests []*chat.Request
}

func (r *recordingGen) Generate(ctx context.Context, req *chat.Request) (*genai.Content, *genai.UsageMetadata, error) {
	r.requests = append(r.requests, req)
	return r.noopGen.Generate(ctx, req)
}

func TestMemoryRefreshAppendsSuffix(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "DROVER.md")
	if err := os.WriteFile(file, []byte("## Added Memories\n- prefers tabs\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	gen := &recordingGen{}
	session := chat.NewSession(gen, chat.Options{Model: "m", SystemInstruction: "base prompt"})
	loader := NewMemoryLoader(session, "base prompt", file, nil)

	if err := loader.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, _, err := session.Send(context.Background(), genai.NewUserText("hi")); err != nil {
		t.Fatal(err)
	}

	if len(gen.requests) != 1 {
		t.Fatalf("got %d requests", len(gen.requests))
	}
	instruction := gen.requests[0].SystemInstruction
	if !strings.HasPrefix(instruction, "base prompt") {
		t.Errorf("instruction lost the base prompt: %q", instruction)
	}
	if !strings.Contains(instruction, "User preferences and context:") ||
		!strings.Contains(instruction, "prefers tabs") {
		t.Errorf("instruction missing memory suffix: %q", instruction)
	}
}

func TestMemoryRefreshMissingFileKeepsBase(t *testing.T) {
	gen := &recordingGen{}
	session := chat.NewSession(gen, chat.Options{Model: "m", SystemInstruction: "base prompt"})
	loader := NewMemoryLoader(session, "base prompt", filepath.Join(t.TempDir(), "absent.md"), nil)

	if err := loader.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, _, err := session.Send(context.Background(), genai.NewUserText("hi")); err != nil {
		t.Fatal(err)
	}
	if got := gen.requests[0].SystemInstruction; got != "base prompt" {
		t.Errorf("instruction = %q, want base prompt only", got)
	}
}
