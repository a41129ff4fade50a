package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgersync/internal/loadtest"
	"github.com/ledgerline/ledgersync/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "maint",
	Short:   "Time full syncs against a seeded pair of SQLite files",
	Long: `Seed a scratch local store with transactions and their dependents, then time
repeated full syncs against a file-backed remote.

The first run copies everything. Before each later run a share of notes is
rewritten locally (--churn) so the steady-state cost of a sync is measured.

Examples:
  lsync bench
  lsync bench --parents 500 --children 9 --runs 20 --parallel 8
  lsync bench --json`,
	Run: runBench,
}

func init() {
	d := loadtest.DefaultOptions()
	benchCmd.Flags().Int("parents", d.Parents, "Transactions to seed")
	benchCmd.Flags().Int("children", d.Children, "Dependents per transaction")
	benchCmd.Flags().Int("runs", 10, "Full syncs to time")
	benchCmd.Flags().Int("parallel", d.Parallelism, "Transactions reconciled concurrently")
	benchCmd.Flags().Float64("churn", d.Churn, "Fraction of notes rewritten before each later run (0.0-1.0)")
	benchCmd.Flags().String("dir", "", "Directory for the database files (default: a temporary directory)")
	benchCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) {
	opts := loadtest.DefaultOptions()
	opts.Parents, _ = cmd.Flags().GetInt("parents")
	opts.Children, _ = cmd.Flags().GetInt("children")
	opts.Parallelism, _ = cmd.Flags().GetInt("parallel")
	opts.Churn, _ = cmd.Flags().GetFloat64("churn")
	opts.Logger = log
	runs, _ := cmd.Flags().GetInt("runs")
	dir, _ := cmd.Flags().GetString("dir")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if dir == "" {
		tmp, err := os.MkdirTemp("", "lsync-bench-")
		if err != nil {
			fatalf("%v", err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	ctx := context.Background()
	if !jsonOutput {
		fmt.Printf("%s Seeding %d transactions x %d dependents...\n", ui.RenderAccent("🔧"), opts.Parents, opts.Children)
	}
	start := time.Now()
	f, err := loadtest.CreateFixture(ctx, dir, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	defer f.Close()
	seeded := time.Since(start)

	stats, err := f.RunFullSyncs(ctx, runs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"records":    f.Records,
			"seed_ms":    seeded.Milliseconds(),
			"runs":       stats.Runs,
			"writes":     stats.Writes,
			"failed":     stats.Errors,
			"min_ms":     ms(stats.Min),
			"p50_ms":     ms(stats.P50),
			"mean_ms":    ms(stats.Mean),
			"p95_ms":     ms(stats.P95),
			"p99_ms":     ms(stats.P99),
			"max_ms":     ms(stats.Max),
			"first_ms":   ms(stats.First),
			"parallel":   opts.Parallelism,
			"churn_rate": opts.Churn,
		})
		return
	}

	fmt.Printf("   %s seeded in %v\n\n", ui.Count(f.Records, "record"), seeded.Round(time.Millisecond))
	stats.PrintStats(os.Stdout)
	if stats.Errors > 0 {
		fmt.Printf("\n%s %d runs reported errors\n", ui.RenderWarn("⚠"), stats.Errors)
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
