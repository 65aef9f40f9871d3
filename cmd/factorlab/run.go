package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/factorlab/internal/app"
	"github.com/newthinker/factorlab/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runFeatures string
	runPrices   string
	runModel    string
	runWorkers  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a walk-forward backtest",
	Long:  "Train a scorer per walk-forward split, build positions, simulate the portfolio and report statistics",
	Args:  cobra.NoArgs,
	RunE:  runBacktest,
}

func init() {
	runCmd.Flags().StringVar(&runFeatures, "features", "", "feature panel CSV (overrides data.features)")
	runCmd.Flags().StringVar(&runPrices, "prices", "", "price panel CSV (overrides data.prices)")
	runCmd.Flags().StringVar(&runModel, "model", "", "scorer kind: gbrt or ridge (overrides model.kind)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "splits fitted in parallel (overrides runner.workers)")

	rootCmd.AddCommand(runCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if runFeatures != "" {
		cfg.Data.Features = runFeatures
	}
	if runPrices != "" {
		cfg.Data.Prices = runPrices
	}
	if runModel != "" {
		cfg.Model.Kind = runModel
	}
	if runWorkers > 0 {
		cfg.Runner.Workers = runWorkers
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := a.Run(ctx)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return err
	}

	if err := report.Render(cmd.OutOrStdout(), rep.Run.Summary); err != nil {
		return err
	}
	if rep.ArchiveDir != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Artifacts: %s\n", rep.ArchiveDir)
	}
	return nil
}
