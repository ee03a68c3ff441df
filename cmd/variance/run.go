package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/warp/shift-variance/config"
	"github.com/warp/shift-variance/pipeline"
	"github.com/warp/shift-variance/variance"
)

var (
	runShifts string
	runLeave  string
	runRoster string
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the variance check once",
	Long: `Loads the three inputs, applies every policy rule and writes the report.

A failed run still writes a one-row ERROR report. The exit code is 0 unless
failure_policy is nonzero_on_failure.`,
	Args: cobra.NoArgs,
	RunE: runVariance,
}

func init() {
	runCmd.Flags().StringVar(&runShifts, "shifts", "", "Actual shifts file (overrides config)")
	runCmd.Flags().StringVar(&runLeave, "leave", "", "Leave file (overrides config)")
	runCmd.Flags().StringVar(&runRoster, "roster", "", "Roster (SOW) file (overrides config)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Report file (overrides config)")
}

func runVariance(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return configFailure(ctx, err)
	}
	applyRunFlags(cfg)

	log := newLogger(cfg)

	opts, err := cfg.Options()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		if werr := cfg.FallbackWriter().WriteFallback(ctx, variance.KindUnhandled, err.Error()); werr != nil {
			log.Error("fallback report not written", "err", werr)
		}
		exitCode = exitFor(cfg.FailurePolicy)
		return nil
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Warn("run history disabled", "err", err)
		store, closeStore = nil, func() error { return nil }
	}
	defer closeStore()

	res := pipeline.NewRunner(opts, log, store).Run(ctx)
	exitCode = res.ExitCode(opts.FailurePolicy)
	return nil
}

func applyRunFlags(cfg *config.Config) {
	if runShifts != "" {
		cfg.Inputs.Shifts = config.FileConfig{Path: runShifts}
	}
	if runLeave != "" {
		cfg.Inputs.Leave = config.FileConfig{Path: runLeave}
	}
	if runRoster != "" {
		cfg.Inputs.Roster = config.FileConfig{Path: runRoster}
	}
	if runOutput != "" {
		cfg.Output = config.FileConfig{Path: runOutput}
	}
}

// configFailure handles a config that could not be loaded at all: the
// fallback report goes to the default output and the default failure
// policy applies.
func configFailure(ctx context.Context, err error) error {
	log := newLogger(nil)
	log.Error("configuration not loaded", "err", err)

	cfg := config.Default()
	if runOutput != "" {
		cfg.Output = config.FileConfig{Path: runOutput}
	}
	if werr := cfg.FallbackWriter().WriteFallback(ctx, variance.KindUnhandled, err.Error()); werr != nil {
		log.Error("fallback report not written", "err", werr)
	}
	exitCode = exitFor(cfg.FailurePolicy)
	return nil
}

func exitFor(policy string) int {
	p, err := pipeline.ParseFailurePolicy(policy)
	if err != nil {
		p = pipeline.AlwaysZero
	}
	return pipeline.Result{Status: pipeline.StatusFailed}.ExitCode(p)
}
