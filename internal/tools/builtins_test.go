package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadFileSlicing(t *testing.T) {
	path := writeTemp(t, "f.txt", "one\ntwo\nthree\nfour")
	tool := NewReadFileTool("")

	res, err := tool.Execute(context.Background(), map[string]any{
		"path": path, "offset": float64(2), "limit": float64(2),
	}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := res.LLMContent[0].Text; got != "two\nthree" {
		t.Errorf("sliced content = %q", got)
	}
}

func TestReadFileRejectsRelativePath(t *testing.T) {
	tool := NewReadFileTool("")
	if err := tool.ValidateParams(map[string]any{"path": "rel/f.txt"}); err == nil {
		t.Error("relative path accepted")
	}
}

func TestReadFileRejectsOutsideRoot(t *testing.T) {
	tool := NewReadFileTool("/project")
	if err := tool.ValidateParams(map[string]any{"path": "/etc/passwd"}); err == nil {
		t.Error("path outside root accepted")
	}
	if err := tool.ValidateParams(map[string]any{"path": "/project/sub/f.txt"}); err != nil {
		t.Errorf("path inside root rejected: %v", err)
	}
}

func TestWriteFileConfirmationCarriesDiff(t *testing.T) {
	path := writeTemp(t, "f.txt", "old\n")
	tool := NewWriteFileTool("")

	conf, err := tool.ShouldConfirm(context.Background(), map[string]any{
		"file_path": path, "content": "new\n",
	})
	if err != nil {
		t.Fatalf("ShouldConfirm: %v", err)
	}
	if conf == nil || conf.Kind != ConfirmEdit {
		t.Fatalf("confirmation = %+v, want edit kind", conf)
	}
	if !strings.Contains(conf.FileDiff, "-old") || !strings.Contains(conf.FileDiff, "+new") {
		t.Errorf("diff missing changes:\n%s", conf.FileDiff)
	}
}

func TestWriteFileExecute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "f.txt")
	tool := NewWriteFileTool("")

	res, err := tool.Execute(context.Background(), map[string]any{
		"file_path": path, "content": "hello",
	}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("file content = %q", data)
	}
	if _, ok := res.Display.(*FileDiff); !ok {
		t.Errorf("display = %T, want *FileDiff", res.Display)
	}
}

func TestReplaceApply(t *testing.T) {
	path := writeTemp(t, "f.txt", "hello foo world\n")
	tool := NewReplaceTool("")
	args := map[string]any{
		"file_path": path, "old_string": "foo", "new_string": "bar",
	}

	if err := tool.ValidateParams(args); err != nil {
		t.Fatalf("ValidateParams: %v", err)
	}
	if _, err := tool.Execute(context.Background(), args, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "hello bar world\n" {
		t.Errorf("post-edit content = %q", data)
	}
}

func TestReplaceRejectsMissingAndAmbiguous(t *testing.T) {
	path := writeTemp(t, "f.txt", "aa bb aa\n")
	tool := NewReplaceTool("")

	_, err := tool.Execute(context.Background(), map[string]any{
		"file_path": path, "old_string": "zz", "new_string": "yy",
	}, nil)
	if err == nil {
		t.Error("missing old_string accepted")
	}

	_, err = tool.Execute(context.Background(), map[string]any{
		"file_path": path, "old_string": "aa", "new_string": "yy",
	}, nil)
	if err == nil {
		t.Error("ambiguous old_string accepted without expected_replacements")
	}

	_, err = tool.Execute(context.Background(), map[string]any{
		"file_path": path, "old_string": "aa", "new_string": "yy",
		"expected_replacements": float64(2),
	}, nil)
	if err != nil {
		t.Errorf("expected_replacements=2 rejected: %v", err)
	}
}

func TestReplaceModifyContextRebuildsParams(t *testing.T) {
	path := writeTemp(t, "f.txt", "hello foo world\n")
	tool := NewReplaceTool("")
	args := map[string]any{
		"file_path": path, "old_string": "foo", "new_string": "bar",
	}

	mc := tool.ModifyContext()
	current, err := mc.CurrentContent(args)
	if err != nil {
		t.Fatalf("CurrentContent: %v", err)
	}
	proposed, err := mc.ProposedContent(args)
	if err != nil {
		t.Fatalf("ProposedContent: %v", err)
	}
	if proposed != "hello bar world\n" {
		t.Errorf("proposed = %q", proposed)
	}

	updated := mc.UpdatedParams(current, "hello bar! world\n", args)
	if updated["old_string"] != current || updated["new_string"] != "hello bar! world\n" {
		t.Errorf("updated params = %+v", updated)
	}
	// Original args must be untouched.
	if args["new_string"] != "bar" {
		t.Error("UpdatedParams mutated the original args")
	}
}

func TestShellRootCommand(t *testing.T) {
	cases := []struct {
		command string
		want    string
	}{
		{"ls -la", "ls"},
		{"/usr/bin/git status", "git"},
		{"FOO=bar npm test", "npm"},
		{"sudo rm -rf /tmp/x", "rm"},
	}
	for _, tc := range cases {
		if got := RootCommand(tc.command); got != tc.want {
			t.Errorf("RootCommand(%q) = %q, want %q", tc.command, got, tc.want)
		}
	}
}

func TestShellExecuteStreamsOutput(t *testing.T) {
	tool := NewShellTool(t.TempDir())
	var last string
	res, err := tool.Execute(context.Background(), map[string]any{
		"command": "echo first && echo second",
	}, func(chunk string) { last = chunk })
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := res.LLMContent[0].Text
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(last, "second") {
		t.Errorf("live output did not carry the running total: %q", last)
	}
}

func TestShellConfirmationCarriesRootCommand(t *testing.T) {
	tool := NewShellTool("")
	conf, err := tool.ShouldConfirm(context.Background(), map[string]any{
		"command": "git push origin main",
	})
	if err != nil {
		t.Fatalf("ShouldConfirm: %v", err)
	}
	if conf.Kind != ConfirmExec || conf.RootCommand != "git" {
		t.Errorf("confirmation = %+v", conf)
	}
}

func TestSaveMemoryAppendsToSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.md")
	tool := NewSaveMemoryTool(path)

	for _, fact := range []string{"likes tabs", "prefers dark mode"} {
		if _, err := tool.Execute(context.Background(), map[string]any{"fact": fact}, nil); err != nil {
			t.Fatalf("Execute(%q): %v", fact, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("memory file not written: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, memorySectionHeader) {
		t.Error("section header missing")
	}
	if !strings.Contains(content, "- likes tabs") || !strings.Contains(content, "- prefers dark mode") {
		t.Errorf("facts missing:\n%s", content)
	}
}

func TestUnifiedDiff(t *testing.T) {
	diff := UnifiedDiff("f.txt", "a\nb\nc\n", "a\nx\nc\n")
	for _, want := range []string{"--- a/f.txt", "+++ b/f.txt", "-b", "+x", " a"} {
		if !strings.Contains(diff, want) {
			t.Errorf("diff missing %q:\n%s", want, diff)
		}
	}
	if UnifiedDiff("f.txt", "same", "same") != "" {
		t.Error("identical content produced a diff")
	}
}
