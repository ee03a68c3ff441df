/*
main.go - Command-line entry point

PURPOSE:
  variance reconciles actual shifts against leave and the planned roster,
  applies the attendance and allowance policies, and writes the variance
  report. It can run once, serve an HTTP API for on-demand runs, or list
  the run history.

COMMANDS:
  variance run     One pipeline run, exit code per failure_policy
  variance serve   HTTP API (see api/server.go)
  variance runs    Print recent runs from the history database

GLOBAL FLAGS:
  --config     YAML config path (optional; defaults + VARIANCE_* env)
  --log-level  debug | info | warn | error (overrides config)
  --log-json   JSON log lines

EXAMPLES:
  variance run
  variance run --config variance.yaml --output out/report.xlsx
  VARIANCE_HISTORY_DB=runs.db variance serve --port 9090

SEE ALSO:
  - config/config.go: Config file format and env overrides
  - pipeline/pipeline.go: What a run does
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/shift-variance/config"
	"github.com/warp/shift-variance/logger"
	"github.com/warp/shift-variance/pipeline"
	"github.com/warp/shift-variance/store/memory"
	"github.com/warp/shift-variance/store/sqlite"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logJSON    bool

	// exitCode is set by commands that finish without a Go error but still
	// want a non-zero status.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "variance",
	Short: "Shift variance reconciliation and policy checks",
	Long: `variance joins actual shifts, leave records and the planned roster per
employee and day, flags policy violations and writes a variance report.

Without a subcommand it behaves like "variance run".`,
	Args:         cobra.NoArgs,
	RunE:         runVariance,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit JSON log lines")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newLogger applies the CLI flags over the config's log section.
func newLogger(cfg *config.Config) logger.Logger {
	level := logger.InfoLevel
	useJSON := logJSON
	if cfg != nil {
		level = logger.ParseLevel(cfg.Log.Level)
		useJSON = useJSON || cfg.Log.JSON
	}
	if logLevel != "" {
		level = logger.ParseLevel(logLevel)
	}
	return logger.NewLogger(&logger.Config{
		Level:      level,
		Output:     os.Stderr,
		JSON:       useJSON,
		TimeFormat: "15:04:05",
	})
}

// openStore returns the SQLite history when configured, else an in-memory one.
func openStore(cfg *config.Config) (pipeline.RunStore, func() error, error) {
	if cfg.History.Path == "" {
		return memory.New(), func() error { return nil }, nil
	}
	store, err := sqlite.New(cfg.History.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open run history: %w", err)
	}
	return store, store.Close, nil
}
