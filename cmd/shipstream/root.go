package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/shipstream/shipstream/pkg/logger"
)

// newRootCmd builds the shipstream command tree.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shipstream",
		Short: "Workflow automation with atomic rollback",
		Long: `Shipstream runs multi-step operational workflows (patches, releases,
infrastructure changes) as transactions: every step declares how to undo
itself, and a failure anywhere rolls the completed steps back in reverse
order.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "shipstream.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newRunCmd(),
		newHistoryCmd(),
	)

	return rootCmd
}

// loggerFromFlags builds the process logger from the persistent flags.
func loggerFromFlags(cmd *cobra.Command) (logger.Logger, error) {
	levelStr, _ := cmd.Flags().GetString("log-level")

	var level zapcore.Level
	if err := level.Set(levelStr); err != nil {
		return nil, err
	}

	cfg := logger.Config{Level: level}

	return cfg.New()
}
