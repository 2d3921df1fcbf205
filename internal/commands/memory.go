package commands

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/kepvey/drover/internal/chat"
)

// MemoryLoader folds the memory file into the session's system instruction.
// The scheduler calls Refresh after every successful save_memory so new
// facts reach the model on the next request.
type MemoryLoader struct {
	session    *chat.Session
	basePrompt string
	memoryFile string
	logger     *slog.Logger
}

// NewMemoryLoader builds a loader over the given memory file. basePrompt is
// the system instruction without any memory suffix.
func NewMemoryLoader(session *chat.Session, basePrompt, memoryFile string, logger *slog.Logger) *MemoryLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryLoader{
		session:    session,
		basePrompt: basePrompt,
		memoryFile: memoryFile,
		logger:     logger,
	}
}

// Refresh re-reads the memory file and updates the system instruction. A
// missing file clears the memory suffix.
func (m *MemoryLoader) Refresh(ctx context.Context) error {
	instruction := m.basePrompt

	data, err := os.ReadFile(m.memoryFile)
	switch {
	case os.IsNotExist(err):
		// No memory yet.
	case err != nil:
		return err
	default:
		if memory := strings.TrimSpace(string(data)); memory != "" {
			instruction += "\nUser preferences and context:\n" + memory
		}
	}

	m.session.SetSystemInstruction(instruction)
	m.logger.Debug("refreshed memory", "file", m.memoryFile)
	return nil
}
