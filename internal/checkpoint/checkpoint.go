package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kepvey/drover/pkg/genai"
)

// HistorySource provides the two conversation views captured in a sidecar.
// *chat.Session satisfies it.
type HistorySource interface {
	History(curated bool) []genai.Content
}

// Snapshotter commits the work tree and returns the commit hash. *GitService
// is the production implementation.
type Snapshotter interface {
	Snapshot(ctx context.Context, message string) (string, error)
}

// SidecarCall records the pending tool call a checkpoint was taken for.
type SidecarCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Sidecar is the JSON document written next to each snapshot. History is the
// comprehensive record, ClientHistory the curated view the model sees.
type Sidecar struct {
	History       []genai.Content `json:"history"`
	ClientHistory []genai.Content `json:"clientHistory"`
	ToolCall      SidecarCall     `json:"toolCall"`
	CommitHash    string          `json:"commitHash"`
	FilePath      string          `json:"filePath"`
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Git     Snapshotter
	History HistorySource

	// Dir is the directory sidecar files are written to, typically
	// <project temp dir>/checkpoints.
	Dir string

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Service writes checkpoints. It implements the tool call manager's
// Checkpointer collaborator.
type Service struct {
	git     Snapshotter
	history HistorySource
	dir     string
	now     func() time.Time
	logger  *slog.Logger
}

// NewService builds a checkpoint service.
func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		git:     opts.Git,
		history: opts.History,
		dir:     opts.Dir,
		now:     now,
		logger:  logger,
	}
}

// Snapshot commits the work tree and writes the sidecar for one pending call.
func (s *Service) Snapshot(ctx context.Context, filePath, toolName string, args map[string]any) error {
	hash, err := s.git.Snapshot(ctx, fmt.Sprintf("Snapshot for %s (%s)", toolName, uuid.NewString()))
	if err != nil {
		return err
	}

	sidecar := Sidecar{
		History:       s.history.History(false),
		ClientHistory: s.history.History(true),
		ToolCall:      SidecarCall{Name: toolName, Args: args},
		CommitHash:    hash,
		FilePath:      filePath,
	}
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	name := SidecarName(s.now().UTC(), filePath, toolName)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return err
	}
	s.logger.Info("checkpoint written", "file", name, "commit", hash)
	return nil
}

// List returns the sidecar file names in the checkpoint directory, oldest
// first. A missing directory is an empty list.
func (s *Service) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load reads one sidecar by file name.
func (s *Service) Load(name string) (*Sidecar, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, err
	}
	var sidecar Sidecar
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", name, err)
	}
	return &sidecar, nil
}

// SidecarName builds the sidecar file name for a snapshot: the timestamp with
// path-hostile characters flattened, the touched file's base name, and the
// tool.
func SidecarName(ts time.Time, filePath, toolName string) string {
	stamp := ts.Format(time.RFC3339)
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return fmt.Sprintf("%s-%s-%s.json", stamp, filepath.Base(filePath), toolName)
}
