package commands

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/kepvey/drover/internal/chat"
	"github.com/kepvey/drover/pkg/genai"
)

type noopGen struct{}

func (noopGen) GenerateStream(ctx context.Context, req *chat.Request) (<-chan *chat.Chunk, error) {
	ch := make(chan *chat.Chunk)
	close(ch)
	return ch, nil
}

func (noopGen) Generate(ctx context.Context, req *chat.Request) (*genai.Content, *genai.UsageMetadata, error) {
	c := genai.NewModelText("summary")
	return &c, &genai.UsageMetadata{}, nil
}

func (noopGen) GenerateJSON(ctx context.Context, req *chat.JSONRequest, out any) error { return nil }

func (noopGen) CountTokens(ctx context.Context, model string, contents []genai.Content) (int, error) {
	return 1, nil
}

func (noopGen) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return nil, nil
}

func newProcessor(t *testing.T) (*Processor, *chat.Session, *[]string) {
	t.Helper()
	session := chat.NewSession(noopGen{}, chat.Options{
		Model:  "gemini-2.0-flash",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	var lines []string
	p := New(session, func(s string) { lines = append(lines, s) }, nil)
	return p, session, &lines
}

func TestUnknownCommandFallsThrough(t *testing.T) {
	p, _, _ := newProcessor(t)
	res, err := p.Process(context.Background(), "/summon")
	if err != nil || res != nil {
		t.Errorf("Process = %+v, %v; want nil result so the model sees it", res, err)
	}
}

func TestClearEmptiesHistory(t *testing.T) {
	p, session, out := newProcessor(t)
	session.AppendUser(genai.NewUserText("old"))

	res, err := p.Process(context.Background(), "/clear")
	if err != nil || res == nil || !res.Handled {
		t.Fatalf("Process = %+v, %v", res, err)
	}
	if len(session.History(false)) != 0 {
		t.Error("history not cleared")
	}
	if len(*out) == 0 || !strings.Contains((*out)[0], "cleared") {
		t.Errorf("output = %v", *out)
	}
}

func TestMemoryAddSchedulesTool(t *testing.T) {
	p, _, _ := newProcessor(t)
	res, err := p.Process(context.Background(), "/memory add prefers short answers")
	if err != nil {
		t.Fatal(err)
	}
	if !res.ScheduleTool || res.ToolName != "save_memory" {
		t.Fatalf("result = %+v", res)
	}
	if res.ToolArgs["fact"] != "prefers short answers" {
		t.Errorf("fact = %v", res.ToolArgs["fact"])
	}
}

func TestMemoryAddRequiresFact(t *testing.T) {
	p, _, _ := newProcessor(t)
	if _, err := p.Process(context.Background(), "/memory add"); err == nil {
		t.Error("missing fact accepted")
	}
}

func TestModelShowAndSwitch(t *testing.T) {
	p, session, out := newProcessor(t)

	if _, err := p.Process(context.Background(), "/model"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains((*out)[0], "gemini-2.0-flash") {
		t.Errorf("output = %v", *out)
	}

	if _, err := p.Process(context.Background(), "/model gemini-1.5-pro"); err != nil {
		t.Fatal(err)
	}
	if session.Model() != "gemini-1.5-pro" {
		t.Errorf("model = %q after switch", session.Model())
	}
}
