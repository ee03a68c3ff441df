package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs from the history database",
	Args:  cobra.NoArgs,
	RunE:  listRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum runs to list (0 = all)")
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("no run history configured (set history.path or VARIANCE_HISTORY_DB)")
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	runs, err := store.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tROWS\tFLAGGED\tRULES\tERROR")
	for _, r := range runs {
		rules := make([]string, 0, len(r.RuleCounts))
		for id, n := range r.RuleCounts {
			rules = append(rules, fmt.Sprintf("%s=%d", id, n))
		}
		sort.Strings(rules)

		errText := r.ErrorKind
		if r.Error != "" {
			errText = r.ErrorKind + ": " + r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%v\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status,
			r.ShiftRows, r.FlaggedRows, rules, errText)
	}
	return w.Flush()
}
