package store

import (
	"context"
	"errors"
	"testing"

	"github.com/kepvey/drover/pkg/genai"
)

func openTest(t *testing.T) *TranscriptStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	history := []genai.Content{
		genai.NewUserText("read main.go"),
		{Role: genai.RoleModel, Parts: []genai.Part{
			{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "read_file", Args: map[string]any{"absolute_path": "/p/main.go"}}},
		}},
	}
	if err := s.Save(ctx, "sess-1", history); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d messages, want 2", len(got))
	}
	fc := got[1].Parts[0].FunctionCall
	if fc == nil || fc.Name != "read_file" || fc.Args["absolute_path"] != "/p/main.go" {
		t.Errorf("function call did not survive the round trip: %+v", fc)
	}
}

func TestLoadReturnsLatestSnapshot(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.Save(ctx, "sess-1", []genai.Content{genai.NewUserText("one")}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "sess-1", []genai.Content{
		genai.NewUserText("one"),
		genai.NewModelText("two"),
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("loaded %d messages, want the newer snapshot", len(got))
	}
}

func TestLoadUnknownSession(t *testing.T) {
	s := openTest(t)
	if _, err := s.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListGroupsBySession(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	for range 2 {
		if err := s.Save(ctx, "a", []genai.Content{genai.NewUserText("x")}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Save(ctx, "b", []genai.Content{genai.NewUserText("y")}); err != nil {
		t.Fatal(err)
	}

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("listed %d sessions, want 2", len(infos))
	}
	counts := map[string]int{}
	for _, info := range infos {
		counts[info.SessionID] = info.Snapshots
	}
	if counts["a"] != 2 || counts["b"] != 1 {
		t.Errorf("snapshot counts = %v", counts)
	}
}
