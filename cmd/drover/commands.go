package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kepvey/drover/internal/checkpoint"
	"github.com/kepvey/drover/internal/store"
)

func buildToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			registry := registerBuiltins(cfg, logger)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDISPLAY\tDESCRIPTION")
			for _, t := range registry.List() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name(), t.DisplayName(), t.Description())
			}
			return w.Flush()
		},
	}
}

func buildSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored session transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store.Path == "" {
				return fmt.Errorf("no transcript store configured (store.path)")
			}
			transcripts, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer transcripts.Close()

			infos, err := transcripts.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tSNAPSHOTS\tUPDATED")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%d\t%s\n", info.SessionID, info.Snapshots,
					info.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

func buildRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [checkpoint]",
		Short: "List checkpoints, or restore the project files from one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			root := cfg.Tools.Root
			git := checkpoint.NewGitService(root, cfg.CheckpointDir(root), logger)
			service := checkpoint.NewService(checkpoint.ServiceOptions{
				Git:    git,
				Dir:    checkpointSidecarDir(cfg, root),
				Logger: logger,
			})

			if len(args) == 0 {
				names, err := service.List()
				if err != nil {
					return err
				}
				if len(names) == 0 {
					fmt.Println("no checkpoints")
					return nil
				}
				for _, name := range names {
					fmt.Println(name)
				}
				return nil
			}

			sidecar, err := service.Load(args[0])
			if err != nil {
				return err
			}
			if err := git.Init(cmd.Context()); err != nil {
				return err
			}
			if err := git.Restore(cmd.Context(), sidecar.CommitHash); err != nil {
				return err
			}
			fmt.Printf("restored %s (commit %s)\n", sidecar.FilePath, sidecar.CommitHash)
			return nil
		},
	}
}
