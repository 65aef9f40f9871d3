package main

import (
	"fmt"

	"github.com/newthinker/factorlab/internal/app"
	"github.com/newthinker/factorlab/internal/report"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newArchiveApp()
		if err != nil {
			return err
		}
		summaries, err := a.ListRuns(cmd.Context())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs archived.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.RunsTable(summaries).Render())
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the statistics of an archived run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newArchiveApp()
		if err != nil {
			return err
		}
		s, err := a.ReadRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return report.Render(cmd.OutOrStdout(), *s)
	},
}

func init() {
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func newArchiveApp() (*app.App, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, err
	}
	// Browsing the archive never exports metrics.
	cfg.Metrics.Enabled = false
	return app.New(cfg, log)
}
