package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shipstream/shipstream/config"
	"github.com/shipstream/shipstream/workflow"
)

// newHistoryCmd creates the command that inspects recorded transactions.
func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded transactions",
	}

	historyCmd.AddCommand(newHistoryListCmd(), newHistoryShowCmd())

	return historyCmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded transactions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := historyFromFlags(cmd)
			if err != nil {
				return err
			}

			records, err := history.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("no recorded transactions")

				return nil
			}

			for _, rec := range records {
				cmd.Printf("%s  %-12s  %s  %s\n",
					rec.RecordedAt.Format("2006-01-02 15:04:05"), rec.State, rec.ID, rec.Description)
			}

			return nil
		},
	}
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <transaction-id>",
		Short: "Show one transaction's record including its audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := historyFromFlags(cmd)
			if err != nil {
				return err
			}

			rec, err := history.Load(args[0])
			if err != nil {
				return err
			}

			cmd.Printf("transaction %s: %s\n", rec.ID, rec.State)
			cmd.Printf("  %s\n", rec.Description)
			cmd.Printf("  operations: %d/%d succeeded, %d failed, duration %s\n",
				rec.Metrics.Succeeded, rec.Metrics.TotalOps, rec.Metrics.Failed, rec.Metrics.Duration)
			if rec.Error != "" {
				cmd.Printf("  error: %s\n", rec.Error)
			}
			cmd.Println("audit trail:")
			for _, line := range rec.AuditTrail {
				cmd.Printf("  %s\n", line)
			}

			return nil
		},
	}
}

func historyFromFlags(cmd *cobra.Command) (*workflow.History, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return workflow.NewHistory(cfg.Engine.HistoryDir)
}
