package tools

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

// stubTool is a minimal manual tool for registry tests.
type stubTool struct {
	BaseTool
	executed bool
}

func newStubTool(name string) *stubTool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{"type": "string"},
		},
		"required": []any{"value"},
	}
	return &stubTool{BaseTool: NewBaseTool(name, name, "stub tool", schema, false, false)}
}

func (t *stubTool) Execute(ctx context.Context, args map[string]any, _ func(string)) (*Result, error) {
	t.executed = true
	return TextResult("ok"), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryLookupAndList(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(newStubTool("beta"))
	r.Register(newStubTool("alpha"))

	if _, ok := r.Lookup("alpha"); !ok {
		t.Fatal("alpha not found")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("lookup of unregistered name succeeded")
	}

	list := r.List()
	if len(list) != 2 || list[0].Name() != "alpha" || list[1].Name() != "beta" {
		t.Errorf("List() not sorted by name: %v", names(list))
	}
}

func TestRegistryLastWriterWins(t *testing.T) {
	r := NewRegistry(testLogger())
	first := newStubTool("dup")
	second := newStubTool("dup")
	r.Register(first)
	r.Register(second)

	got, _ := r.Lookup("dup")
	if got != Tool(second) {
		t.Error("duplicate registration did not overwrite")
	}
}

func TestRegistryReplaceDiscoveredKeepsManual(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(newStubTool("manual"))
	r.RegisterDiscovered("srv-a", newStubTool("old_remote"))

	r.ReplaceDiscovered(map[string][]Tool{
		"srv-b": {newStubTool("new_remote")},
	})

	if _, ok := r.Lookup("manual"); !ok {
		t.Error("manual tool lost on re-discovery")
	}
	if _, ok := r.Lookup("old_remote"); ok {
		t.Error("stale discovered tool survived re-discovery")
	}
	if _, ok := r.Lookup("new_remote"); !ok {
		t.Error("newly discovered tool missing")
	}
	if server, ok := r.ServerOf("new_remote"); !ok || server != "srv-b" {
		t.Errorf("ServerOf(new_remote) = %q, %v", server, ok)
	}

	byServer := r.ToolsByServer("srv-b")
	if len(byServer) != 1 || byServer[0].Name() != "new_remote" {
		t.Errorf("ToolsByServer(srv-b) = %v", names(byServer))
	}
}

func TestRegistryDiscoveredCannotShadowManual(t *testing.T) {
	r := NewRegistry(testLogger())
	manual := newStubTool("shared")
	r.Register(manual)

	r.ReplaceDiscovered(map[string][]Tool{
		"srv": {newStubTool("shared")},
	})

	got, _ := r.Lookup("shared")
	if got != Tool(manual) {
		t.Error("discovered tool shadowed a manual registration")
	}
}

func TestFunctionDeclarations(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(newStubTool("b"))
	r.Register(newStubTool("a"))

	decls := r.FunctionDeclarations()
	if len(decls) != 2 {
		t.Fatalf("got %d declarations, want 2", len(decls))
	}
	if decls[0].Name != "a" || decls[1].Name != "b" {
		t.Errorf("declarations not sorted: %s, %s", decls[0].Name, decls[1].Name)
	}
	if decls[0].Parameters == nil {
		t.Error("declaration lost its parameter schema")
	}
}

func TestBaseToolSchemaValidation(t *testing.T) {
	tool := newStubTool("validated")

	if err := tool.ValidateParams(map[string]any{"value": "ok"}); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}
	if err := tool.ValidateParams(map[string]any{}); err == nil {
		t.Error("missing required arg accepted")
	}
	if err := tool.ValidateParams(map[string]any{"value": 42}); err == nil {
		t.Error("wrong-typed arg accepted")
	}
}

func names(list []Tool) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.Name()
	}
	return out
}
