package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Name != "gemini-2.5-pro" {
		t.Errorf("default model = %q", cfg.Model.Name)
	}
	if cfg.Approval.Mode != "default" {
		t.Errorf("default approval mode = %q", cfg.Approval.Mode)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default log level = %q", cfg.Logging.Level)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := writeConfig(t, `
model:
  name: gemini-2.0-flash
  max_turns: 25
approval:
  mode: auto_edit
checkpointing:
  enabled: true
  dir: /tmp/ckpt
tools:
  max_parallel: 4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Name != "gemini-2.0-flash" || cfg.Model.MaxTurns != 25 {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Approval.Mode != "auto_edit" {
		t.Errorf("approval mode = %q", cfg.Approval.Mode)
	}
	if !cfg.Checkpointing.Enabled || cfg.Checkpointing.Dir != "/tmp/ckpt" {
		t.Errorf("checkpointing = %+v", cfg.Checkpointing)
	}
	if cfg.Tools.MaxParallel != 4 {
		t.Errorf("max_parallel = %d", cfg.Tools.MaxParallel)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DROVER_KEY", "secret-key")
	path := writeConfig(t, `
model:
  api_key: ${TEST_DROVER_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.APIKey != "secret-key" {
		t.Errorf("api key = %q, want the expanded env value", cfg.Model.APIKey)
	}
}

func TestEnvOverridesModel(t *testing.T) {
	t.Setenv("DROVER_MODEL", "gemini-1.5-pro")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Name != "gemini-1.5-pro" {
		t.Errorf("model = %q, want the env override", cfg.Model.Name)
	}
}

func TestLoadRejectsBadApprovalMode(t *testing.T) {
	path := writeConfig(t, `
approval:
  mode: always_allow
`)
	if _, err := Load(path); err == nil {
		t.Error("invalid approval mode accepted")
	}
}

func TestCheckpointDirDerivation(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	got := cfg.CheckpointDir("/home/u/projects/demo")
	if filepath.Base(got) != "demo" {
		t.Errorf("derived dir = %q, want it keyed by the project name", got)
	}

	cfg.Checkpointing.Dir = "/explicit"
	if cfg.CheckpointDir("/x") != "/explicit" {
		t.Error("explicit dir not honored")
	}
}
