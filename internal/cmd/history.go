package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/strrl/activator/internal/config"
	"github.com/strrl/activator/internal/history"
	"github.com/strrl/activator/internal/output"
)

var (
	historyDBPath     string
	historyConfigPath string
	historyLimit      int
	historyReportDir  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded activations",
	Long: `Print the most recent activation cycles from the DuckDB ledger written by
"activator run --history-db". The ledger is opened read-only; DuckDB lets only
one process use a database file, so stop the run (or point at a copy) first.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyDBPath, "history-db", "", "DuckDB file written by activator run")
	historyCmd.Flags().StringVarP(&historyConfigPath, "config", "c", "", "Read history.path from this config file")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of cycles to show")
	historyCmd.Flags().StringVar(&historyReportDir, "report", "", "Also write a markdown report into this directory")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, err := resolveHistoryPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("history database not found: %w", err)
	}

	store, err := history.OpenReadOnly(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("%w (DuckDB allows no readers while \"activator run\" holds the file)", err)
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	records, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyReportDir != "" {
		path, err := output.NewGenerator(historyReportDir).Generate(stats, records)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", path)
	}

	fmt.Fprintf(out, "%d activations: %d succeeded, %d failed, %d cancelled\n",
		stats.Total, stats.Succeeded, stats.Failed, stats.Cancelled)
	if !stats.LastSuccess.IsZero() {
		fmt.Fprintf(out, "Last success: %s\n", stats.LastSuccess.Local().Format(time.DateTime))
	}
	if len(records) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%-19s  %-9s  %8s  %7s  %-15s  %s\n", "FIRED AT", "STATUS", "ATTEMPTS", "TOKENS", "ERROR", "CYCLE")
	for _, rec := range records {
		tokens := "-"
		if rec.TotalTokens != nil {
			tokens = fmt.Sprintf("%d", *rec.TotalTokens)
		}
		errKind := rec.ErrorKind
		if errKind == "" {
			errKind = "-"
		}
		fmt.Fprintf(out, "%-19s  %-9s  %8d  %7s  %-15s  %s\n",
			rec.FiredAt.Local().Format(time.DateTime), rec.Status, rec.Attempts, tokens, errKind, rec.CycleID)
	}
	return nil
}

func resolveHistoryPath() (string, error) {
	if historyDBPath != "" {
		return historyDBPath, nil
	}
	if historyConfigPath != "" {
		cfg, err := config.Load(historyConfigPath)
		if err != nil {
			return "", err
		}
		if cfg.History.Path != "" {
			return cfg.History.Path, nil
		}
	}
	return "", fmt.Errorf("no history database given, pass --history-db or a config with history.path")
}
