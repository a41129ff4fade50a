package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgersync/internal/dedupe"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/store"
	"github.com/ledgerline/ledgersync/internal/syncer"
	"github.com/ledgerline/ledgersync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Reconcile the local store with the remote backend",
	Long: `Reconcile the local store with the remote backend for the configured owner.

A full sync (the default):
  1. Sweeps duplicate transactions, daily logs and contacts in each store
  2. Reconciles the owner profile and the transactions
  3. Reconciles every dependent kind of every transaction
  4. Reconciles daily logs and contacts
  5. Records a checkpoint for each kind that completed

--minimal stops after step 2.`,
	Run: func(cmd *cobra.Command, args []string) {
		minimal, _ := cmd.Flags().GetBool("minimal")
		owner := requireOwner()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a := mustOpenApp(ctx)
		defer a.close()

		if !a.probe.Online() {
			fmt.Printf("%s Remote unreachable, nothing synced\n", ui.RenderWarn("⚠"))
			return
		}

		mode := syncer.ModeFull
		run := a.syncer.FullSync
		if minimal {
			mode = syncer.ModeMinimal
			run = a.syncer.MinimalSync
		}

		fmt.Printf("%s Running %s sync for %s...\n", ui.RenderAccent("🔄"), mode, owner)
		rep, err := run(ctx, owner)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		printReport(rep)
	},
}

// printReport renders a sync report as a per-kind table.
func printReport(rep syncer.Report) {
	var rows [][]string
	for _, kind := range schema.Kinds() {
		res, ok := rep.Results[kind]
		if !ok {
			continue
		}
		rows = append(rows, []string{
			string(kind),
			fmt.Sprint(res.Applied),
			fmt.Sprint(res.Unchanged),
			fmt.Sprint(res.Skipped),
			fmt.Sprint(res.Retired),
			fmt.Sprint(len(res.Errors)),
		})
	}
	if len(rows) > 0 {
		fmt.Println()
		fmt.Println(ui.Table([]string{"KIND", "APPLIED", "UNCHANGED", "SKIPPED", "RETIRED", "ERRORS"}, rows))
	}

	removed := 0
	for _, sw := range rep.Sweeps {
		removed += len(sw.Removed)
	}
	if removed > 0 {
		fmt.Printf("Duplicates removed: %d\n", removed)
	}

	elapsed := rep.Finished.Sub(rep.Started).Round(time.Millisecond)
	if rep.OK() {
		fmt.Printf("\n%s Sync complete in %v (%s)\n", ui.RenderPass("✓"), elapsed, ui.Count(rep.Applied(), "write"))
		return
	}

	fmt.Printf("\n%s Sync finished with errors in %v\n", ui.RenderFail("✗"), elapsed)
	for _, err := range rep.Errors {
		fmt.Printf("   %s\n", err)
	}
	for _, kind := range schema.Kinds() {
		for _, err := range rep.Results[kind].Errors {
			fmt.Printf("   %s\n", err)
		}
	}
	for _, sw := range rep.Sweeps {
		for _, err := range sw.Errors {
			fmt.Printf("   %s\n", err)
		}
	}
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show per-kind sync checkpoints",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustOpenApp(ctx)
		defer a.close()

		st, err := a.syncer.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}

		fmt.Printf("\n%s Sync Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Local:  %s\n", a.local.Path())
		if a.probe.Online() {
			fmt.Printf("Remote: %s (%s)\n", a.remote.Dialect(), ui.RenderPass("online"))
		} else {
			fmt.Printf("Remote: %s (%s)\n", a.remote.Dialect(), ui.RenderWarn("offline"))
		}
		fmt.Println()

		rows := make([][]string, 0, len(schema.Kinds()))
		for _, kind := range schema.Kinds() {
			count, _ := a.local.Count(ctx, kind)
			last := ui.RenderMuted("never")
			if at, ok := st.Kinds[kind]; ok {
				last = at.Local().Format("2006-01-02 15:04:05")
			}
			rows = append(rows, []string{string(kind), fmt.Sprint(count), last})
		}
		fmt.Println(ui.Table([]string{"KIND", "LOCAL", "LAST SYNCED"}, rows))
		fmt.Println()

		if st.AllSynced {
			fmt.Printf("%s Every kind synced (oldest %s)\n\n", ui.RenderPass("✓"), st.Oldest.Local().Format("2006-01-02 15:04"))
		} else {
			fmt.Printf("%s %s never synced\n\n", ui.RenderWarn("⚠"), ui.Count(len(st.Missing), "kind"))
		}
	},
}

var dedupeCmd = &cobra.Command{
	Use:     "dedupe",
	GroupID: "maint",
	Short:   "Remove duplicate records from each store",
	Long: `Sweep duplicate transactions, daily logs and contacts from the local store and,
when reachable, the remote store. Records sharing a fingerprint collapse onto
the smallest id; dependents of removed transactions are moved to the survivor.

--dry-run lists the duplicate groups without changing anything.`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		owner := requireOwner()

		ctx := context.Background()
		a := mustOpenApp(ctx)
		defer a.close()

		type side struct {
			name string
			st   store.Adapter
		}
		sides := []side{{"local", a.local}}
		if a.probe.Online() {
			sides = append(sides, side{"remote", a.remote})
		} else {
			fmt.Printf("%s Remote unreachable, sweeping the local store only\n", ui.RenderWarn("⚠"))
		}

		sweeper := dedupe.NewSweeper(log)
		total := 0
		for _, sd := range sides {
			for _, kind := range []schema.Kind{schema.KindTransaction, schema.KindDailyLog, schema.KindContact} {
				if dryRun {
					recs, err := sd.st.GetAll(ctx, kind, owner)
					if err != nil {
						fmt.Fprintf(os.Stderr, "Error: %v\n", err)
						return
					}
					for _, res := range dedupe.Duplicates(kind, recs) {
						for _, rec := range res.Remove {
							fmt.Printf("%s %s: would remove %s (keep %s)\n", sd.name, kind, rec.RecordID(), res.Keep.RecordID())
						}
						total += len(res.Remove)
					}
					continue
				}

				res, err := sweeper.Sweep(ctx, sd.st, kind, owner)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					return
				}
				for _, id := range res.Removed {
					fmt.Printf("%s %s: removed %s\n", sd.name, kind, id)
				}
				for _, err := range res.Errors {
					fmt.Printf("%s %s\n", ui.RenderFail("✗"), err)
				}
				total += len(res.Removed)
			}
		}

		if dryRun {
			fmt.Printf("\n%s %s would be removed\n", ui.RenderAccent("→"), ui.Count(total, "duplicate"))
			return
		}
		fmt.Printf("\n%s %s removed\n", ui.RenderPass("✓"), ui.Count(total, "duplicate"))
	},
}

func init() {
	syncCmd.Flags().Bool("minimal", false, "Only reconcile the owner profile and transactions")
	dedupeCmd.Flags().Bool("dry-run", false, "List duplicates without removing them")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dedupeCmd)
}
