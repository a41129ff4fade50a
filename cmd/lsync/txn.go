package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/ui"
)

var txnCmd = &cobra.Command{
	Use:     "txn",
	GroupID: "records",
	Short:   "Create, list and manage transactions",
}

var txnCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a transaction",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")
		requireOwner()

		ctx := context.Background()
		a := mustOpenApp(ctx)
		defer a.close()

		rec, err := a.writes.Create(ctx, &schema.Transaction{
			Name:   strings.Join(args, " "),
			Status: status,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		fmt.Printf("%s Created transaction %s\n", ui.RenderPass("✓"), ui.RenderAccent(rec.RecordID()))
		printWriteMode(a)
	},
}

var txnListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the owner's transactions",
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")
		requireOwner()

		ctx := context.Background()
		a := mustOpenApp(ctx)
		defer a.close()

		recs, err := a.writes.List(ctx, schema.KindTransaction, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}

		var rows [][]string
		for _, rec := range recs {
			txn := rec.(*schema.Transaction)
			if status != "" && txn.Status != status {
				continue
			}
			rows = append(rows, []string{
				txn.ID,
				txn.Name,
				renderStatus(txn.Status),
				txn.CreatedAt.Local().Format("2006-01-02"),
			})
		}
		if len(rows) == 0 {
			fmt.Println("No transactions")
			return
		}
		fmt.Println(ui.Table([]string{"ID", "NAME", "STATUS", "CREATED"}, rows))
		fmt.Printf("\n%s\n", ui.Count(len(rows), "transaction"))
	},
}

func renderStatus(s string) string {
	switch s {
	case schema.StatusCompleted:
		return ui.RenderPass(s)
	case schema.StatusCancelled:
		return ui.RenderMuted(s)
	default:
		return ui.RenderWarn(s)
	}
}

var txnStatusCmd = &cobra.Command{
	Use:   "status <id> <pending|completed|cancelled>",
	Short: "Change a transaction's status",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustOpenApp(ctx)
		defer a.close()

		txn, err := a.writes.SetStatus(ctx, args[0], args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		fmt.Printf("%s %s is now %s\n", ui.RenderPass("✓"), txn.ID, renderStatus(txn.Status))
		printWriteMode(a)
	},
}

var txnDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a transaction and everything attached to it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustOpenApp(ctx)
		defer a.close()

		if err := a.writes.Delete(ctx, schema.KindTransaction, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		fmt.Printf("%s Deleted transaction %s\n", ui.RenderPass("✓"), args[0])
		printWriteMode(a)
	},
}

// printWriteMode tells the user whether the change reached the remote.
func printWriteMode(a *app) {
	if a.probe.Online() {
		return
	}
	fmt.Printf("%s Offline: saved locally, run 'lsync sync' once connected\n", ui.RenderWarn("⚠"))
}

func init() {
	txnCreateCmd.Flags().String("status", schema.StatusPending, "Initial status")
	txnListCmd.Flags().String("status", "", "Only list transactions with this status")

	txnCmd.AddCommand(txnCreateCmd)
	txnCmd.AddCommand(txnListCmd)
	txnCmd.AddCommand(txnStatusCmd)
	txnCmd.AddCommand(txnDeleteCmd)
	rootCmd.AddCommand(txnCmd)
}
