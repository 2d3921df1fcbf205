package commands

import (
	"context"
	"os/exec"
	"testing"
)

func newShellRunner(t *testing.T) (*ShellRunner, *[]string) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	var lines []string
	r := NewShellRunner(t.TempDir(), func(s string) { lines = append(lines, s) }, nil)
	return r, &lines
}

func TestShellRunnerPrintsOutput(t *testing.T) {
	r, out := newShellRunner(t)
	if err := r.Run(context.Background(), "echo hello"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(*out) != 1 || (*out)[0] != "hello" {
		t.Errorf("output = %v", *out)
	}
}

func TestShellRunnerReportsFailure(t *testing.T) {
	r, _ := newShellRunner(t)
	if err := r.Run(context.Background(), "exit 3"); err == nil {
		t.Error("failing command returned nil error")
	}
}

func TestShellRunnerRejectsEmptyInput(t *testing.T) {
	r, _ := newShellRunner(t)
	if err := r.Run(context.Background(), "   "); err == nil {
		t.Error("empty command accepted")
	}
}

func TestShellRunnerToggle(t *testing.T) {
	r, _ := newShellRunner(t)
	if !r.Active() {
		t.Fatal("runner starts inactive")
	}
	r.SetActive(false)
	if r.Active() {
		t.Error("SetActive(false) did not stick")
	}
}
