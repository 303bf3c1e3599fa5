package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shipstream/shipstream/config"
	"github.com/shipstream/shipstream/gitops"
	"github.com/shipstream/shipstream/hosting"
	"github.com/shipstream/shipstream/pkg/logger"
	"github.com/shipstream/shipstream/provision"
	"github.com/shipstream/shipstream/txn"
	"github.com/shipstream/shipstream/workflow"
)

// newRunCmd creates the command that executes a workflow manifest.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <manifest>",
		Short: "Run a workflow manifest as one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lggr, err := loggerFromFlags(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = lggr.Sync() }()

			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			manifest, err := workflow.LoadManifest(args[0])
			if err != nil {
				return err
			}

			return runManifest(cmd, cfg, manifest, lggr)
		},
	}
}

// runManifest wires the boundaries, executes the workflow and records the
// outcome in history.
func runManifest(cmd *cobra.Command, cfg *config.Config, manifest *workflow.Manifest, lggr logger.Logger) error {
	ctx := cmd.Context()
	registry := txn.NewRegistry(lggr)

	history, err := workflow.NewHistory(cfg.Engine.HistoryDir)
	if err != nil {
		return err
	}

	opts := []txn.Option{
		txn.WithMaxOperations(cfg.Engine.MaxOperations),
		txn.WithTimeout(cfg.Engine.Timeout),
	}

	var t *txn.Transaction
	var runErr error

	switch manifest.Kind {
	case workflow.KindPatch, workflow.KindRelease:
		git, gerr := gitops.NewRunner(cfg.Git.Dir, lggr)
		if gerr != nil {
			return gerr
		}
		host, herr := hosting.NewClient(cfg.Hosting)
		if herr != nil {
			return herr
		}
		opts = append(opts, txn.WithCapturer(
			gitops.NewCapturer(git, cfg.Git.Dir, cfg.Engine.EnvAllowList, lggr)))

		if manifest.Kind == workflow.KindPatch {
			w := workflow.NewPatchWorkflow(git, host, cfg.Hosting.Repository, registry, lggr)
			t, runErr = w.Run(ctx, *manifest.Patch, opts...)
		} else {
			w := workflow.NewReleaseWorkflow(git, host, cfg.Hosting.Repository, registry, lggr)
			t, runErr = w.Run(ctx, *manifest.Release, opts...)
		}
	case workflow.KindProvision:
		infra, perr := provision.NewRunner(cfg.Provision.Binary, cfg.Provision.Dir, lggr)
		if perr != nil {
			return perr
		}
		w := workflow.NewProvisionWorkflow(infra, registry, lggr)
		t, runErr = w.Run(ctx, *manifest.Provision, opts...)
	default:
		return fmt.Errorf("unknown workflow kind %q", manifest.Kind)
	}

	if t != nil {
		if saveErr := history.Save(t); saveErr != nil {
			lggr.Warnw("Failed to record transaction history", "error", saveErr)
		}
		printOutcome(cmd, t)
	}

	return runErr
}

func printOutcome(cmd *cobra.Command, t *txn.Transaction) {
	metrics := t.Metrics()
	cmd.Printf("transaction %s: %s (%d/%d operations succeeded in %s)\n",
		t.ID(), t.State(), metrics.Succeeded, metrics.TotalOps, metrics.Duration)
	if err := t.Err(); err != nil {
		cmd.Printf("  cause: %v\n", err)
	}
}
