package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kepvey/drover/internal/agent"
	"github.com/kepvey/drover/internal/chat"
	"github.com/kepvey/drover/internal/checkpoint"
	"github.com/kepvey/drover/internal/commands"
	"github.com/kepvey/drover/internal/config"
	"github.com/kepvey/drover/internal/provider/gemini"
	"github.com/kepvey/drover/internal/store"
	"github.com/kepvey/drover/internal/tools"
)

// app holds the wired runtime for one CLI invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	sessionID string
	session   *chat.Session
	registry  *tools.Registry
	policy    *agent.ApprovalPolicy
	scheduler *agent.Scheduler
	shell     *commands.ShellRunner

	transcripts *store.TranscriptStore // nil when persistence is off
	checkpoints *checkpoint.Service    // nil when checkpointing is off
	shadowGit   *checkpoint.GitService
}

// buildApp wires config, provider, session, tools, manager, and scheduler.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	provider, err := gemini.New(ctx, gemini.Options{APIKey: cfg.Model.APIKey, Logger: logger})
	if err != nil {
		return nil, err
	}

	root := cfg.Tools.Root
	session := chat.NewSession(provider, chat.Options{
		Model:             cfg.Model.Name,
		SystemInstruction: cfg.Model.SystemPrompt,
		EnvContext:        envContext(root),
		EmbeddingModel:    cfg.Model.EmbeddingName,
		FallbackModel:     cfg.Model.FallbackName,
		FallbackHandler: func(ctx context.Context, current, fallback string) bool {
			logger.Warn("switching to fallback model after persistent quota errors",
				"from", current, "to", fallback)
			return true
		},
		Logger: logger,
	})

	a := &app{
		cfg:       cfg,
		logger:    logger,
		sessionID: uuid.NewString(),
		session:   session,
		registry:  registerBuiltins(cfg, logger),
		policy:    agent.NewApprovalPolicy(approvalMode(cfg.Approval.Mode)),
	}

	if cfg.Checkpointing.Enabled {
		dir := cfg.CheckpointDir(root)
		a.shadowGit = checkpoint.NewGitService(root, dir, logger)
		if err := a.shadowGit.Init(ctx); err != nil {
			logger.Warn("checkpointing disabled", "error", err)
			a.shadowGit = nil
		} else {
			a.checkpoints = checkpoint.NewService(checkpoint.ServiceOptions{
				Git:     a.shadowGit,
				History: session,
				Dir:     checkpointSidecarDir(cfg, root),
				Logger:  logger,
			})
		}
	}

	if cfg.Store.Path != "" {
		transcripts, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.transcripts = transcripts
	}

	var metrics *agent.Metrics
	if cfg.Telemetry.Metrics {
		metrics = agent.NewMetrics(prometheus.DefaultRegisterer)
	}

	manager := agent.NewManager(agent.ManagerOptions{
		Registry:     a.registry,
		Policy:       a.policy,
		Editor:       &tools.Editor{Command: cfg.Editor.Command},
		Checkpointer: checkpointerOrNil(a.checkpoints),
		MaxParallel:  cfg.Tools.MaxParallel,
		Logger:       logger,
		Metrics:      metrics,
	})

	memory := commands.NewMemoryLoader(session, cfg.Model.SystemPrompt, cfg.Tools.MemoryFile, logger)
	if err := memory.Refresh(ctx); err != nil {
		logger.Warn("loading memory file failed", "error", err)
	}

	printLine := func(s string) { fmt.Println(s) }
	a.shell = commands.NewShellRunner(root, printLine, logger)
	a.scheduler = agent.NewScheduler(agent.SchedulerOptions{
		Session:  session,
		Manager:  manager,
		Commands: commands.New(session, printLine, logger),
		Shell:    a.shell,
		At:       commands.NewAtProcessor(root, logger),
		Memory:   memory,
		MaxTurns: cfg.Model.MaxTurns,
		Logger:   logger,
		Metrics:  metrics,
	})

	session.SetTools(a.registry.FunctionDeclarations())
	return a, nil
}

// checkpointerOrNil avoids handing the manager a typed nil.
func checkpointerOrNil(s *checkpoint.Service) agent.Checkpointer {
	if s == nil {
		return nil
	}
	return s
}

func registerBuiltins(cfg *config.Config, logger *slog.Logger) *tools.Registry {
	root := cfg.Tools.Root
	registry := tools.NewRegistry(logger)
	registry.Register(tools.NewReadFileTool(root))
	registry.Register(tools.NewWriteFileTool(root))
	registry.Register(tools.NewReplaceTool(root))
	registry.Register(tools.NewListDirectoryTool(root))
	registry.Register(tools.NewShellTool(root))
	registry.Register(tools.NewSaveMemoryTool(cfg.Tools.MemoryFile))
	return registry
}

func approvalMode(mode string) agent.ApprovalMode {
	switch mode {
	case "auto_edit":
		return agent.ApprovalAutoEdit
	case "yolo":
		return agent.ApprovalYOLO
	default:
		return agent.ApprovalDefault
	}
}

func checkpointSidecarDir(cfg *config.Config, root string) string {
	return filepath.Join(cfg.CheckpointDir(root), "checkpoints")
}

// envContext is the environment preamble seeded into each session.
func envContext(root string) string {
	return fmt.Sprintf(
		"Today's date is %s.\nOperating system: %s\nWorking directory: %s",
		time.Now().Format("Monday, January 2, 2006"), runtime.GOOS, root)
}

// saveTranscript persists the completed turn when a store is configured.
func (a *app) saveTranscript(ctx context.Context) {
	if a.transcripts == nil {
		return
	}
	if err := a.transcripts.Save(ctx, a.sessionID, a.session.History(false)); err != nil {
		a.logger.Warn("transcript save failed", "error", err)
	}
}

// close releases held resources.
func (a *app) close() {
	if a.transcripts != nil {
		a.transcripts.Close()
	}
}
