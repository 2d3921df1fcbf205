// Package config loads the runtime configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for Drover.
type Config struct {
	Model         ModelConfig         `yaml:"model"`
	Approval      ApprovalConfig      `yaml:"approval"`
	Editor        EditorConfig        `yaml:"editor"`
	Checkpointing CheckpointingConfig `yaml:"checkpointing"`
	Tools         ToolsConfig         `yaml:"tools"`
	Store         StoreConfig         `yaml:"store"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ModelConfig struct {
	Name          string `yaml:"name"`
	FallbackName  string `yaml:"fallback_name"`
	APIKey        string `yaml:"api_key"`
	SystemPrompt  string `yaml:"system_prompt"`
	MaxTurns      int    `yaml:"max_turns"`
	EmbeddingName string `yaml:"embedding_name"`
}

type ApprovalConfig struct {
	// Mode is one of "default", "auto_edit", "yolo".
	Mode string `yaml:"mode"`
}

type EditorConfig struct {
	// Command overrides $EDITOR for modify-in-editor.
	Command string `yaml:"command"`
}

type CheckpointingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir is where sidecars and the shadow repository live. Empty derives
	// a per-project directory under the OS temp dir.
	Dir string `yaml:"dir"`
}

type ToolsConfig struct {
	// Root confines file tools; empty means the working directory.
	Root string `yaml:"root"`

	// MaxParallel bounds concurrent tool executions. Zero means unbounded.
	MaxParallel int `yaml:"max_parallel"`

	// MemoryFile is where save_memory appends facts.
	MemoryFile string `yaml:"memory_file"`
}

type StoreConfig struct {
	// Path is the SQLite transcript database. Empty disables persistence.
	Path string `yaml:"path"`
}

type TelemetryConfig struct {
	Metrics bool `yaml:"metrics"`
	Tracing bool `yaml:"tracing"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var approvalModes = map[string]bool{"default": true, "auto_edit": true, "yolo": true}

// Load reads and parses the configuration file. A missing path yields the
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Model.Name == "" {
		cfg.Model.Name = "gemini-2.5-pro"
	}
	if cfg.Model.FallbackName == "" {
		cfg.Model.FallbackName = "gemini-2.5-flash"
	}
	if cfg.Model.EmbeddingName == "" {
		cfg.Model.EmbeddingName = "text-embedding-004"
	}
	if cfg.Approval.Mode == "" {
		cfg.Approval.Mode = "default"
	}
	if cfg.Tools.Root == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Tools.Root = wd
		}
	}
	if cfg.Tools.MemoryFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Tools.MemoryFile = filepath.Join(home, ".drover", "DROVER.md")
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("DROVER_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("DROVER_APPROVAL_MODE"); v != "" {
		cfg.Approval.Mode = v
	}
	if v := os.Getenv("EDITOR"); v != "" && cfg.Editor.Command == "" {
		cfg.Editor.Command = v
	}
}

// Validate checks field values that would otherwise fail deep inside the
// runtime.
func (c *Config) Validate() error {
	if !approvalModes[c.Approval.Mode] {
		return fmt.Errorf("invalid approval mode %q", c.Approval.Mode)
	}
	if c.Model.MaxTurns < 0 {
		return fmt.Errorf("max_turns must not be negative, got %d", c.Model.MaxTurns)
	}
	return nil
}

// CheckpointDir resolves the checkpoint directory for the given project root.
func (c *Config) CheckpointDir(projectRoot string) string {
	if c.Checkpointing.Dir != "" {
		return c.Checkpointing.Dir
	}
	return filepath.Join(os.TempDir(), "drover", filepath.Base(projectRoot))
}
