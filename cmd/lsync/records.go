package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/ui"
)

var paymentCmd = &cobra.Command{
	Use:     "payment",
	GroupID: "records",
	Short:   "Record payments against a transaction",
}

var paymentAddCmd = &cobra.Command{
	Use:   "add <txn-id> <amount>",
	Short: "Record a payment",
	Long: `Record a payment against a transaction.

--date accepts dates ("2024-03-01") and phrases ("yesterday", "last friday").`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		direction, _ := cmd.Flags().GetString("direction")
		method, _ := cmd.Flags().GetString("method")
		paid := dateFlag(cmd, "date")
		amount := amountArg(args[1])

		ctx := context.Background()
		a := mustOpenApp(ctx)
		defer a.close()

		rec, err := a.writes.Create(ctx, &schema.Payment{
			TransactionID: args[0],
			Direction:     direction,
			Amount:        amount,
			Method:        method,
			PaidAt:        paid,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		fmt.Printf("%s Recorded %s payment %s of %s on %s\n",
			ui.RenderPass("✓"), direction, rec.RecordID(), amount.StringFixed(2), paid.Format("2006-01-02"))
		printWriteMode(a)
	},
}

var noteCmd = &cobra.Command{
	Use:     "note",
	GroupID: "records",
	Short:   "Add notes to a transaction",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <txn-id> <text...>",
	Short: "Add a note",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustOpenApp(ctx)
		defer a.close()

		rec, err := a.writes.Create(ctx, &schema.Note{
			TransactionID: args[0],
			Body:          strings.Join(args[1:], " "),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		fmt.Printf("%s Added note %s\n", ui.RenderPass("✓"), rec.RecordID())
		printWriteMode(a)
	},
}

var attachCmd = &cobra.Command{
	Use:     "attach <txn-id> <file>",
	GroupID: "records",
	Short:   "Attach a file to a transaction",
	Long: `Upload a file and record it as an attachment of a transaction.

With blob.provider s3 the file goes to the bucket; if the upload fails the
copy in blob.cache_dir is referenced instead.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		contentType, _ := cmd.Flags().GetString("type")
		file := args[1]
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(file))
		}

		f, err := os.Open(file)
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()

		ctx := context.Background()
		a := mustOpenApp(ctx)
		defer a.close()

		att, err := a.writes.Attach(ctx, &schema.Attachment{
			TransactionID: args[0],
			FileName:      filepath.Base(file),
			ContentType:   contentType,
		}, f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		fmt.Printf("%s Attached %s (%d bytes)\n", ui.RenderPass("✓"), att.FileName, att.Size)
		fmt.Printf("   %s\n", ui.RenderMuted(att.URI))
		printWriteMode(a)
	},
}

var logCmd = &cobra.Command{
	Use:     "log",
	GroupID: "records",
	Short:   "Record daily ledger entries",
}

var logAddCmd = &cobra.Command{
	Use:   "add <recipient> <amount>",
	Short: "Add a daily ledger entry",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		direction, _ := cmd.Flags().GetString("direction")
		category, _ := cmd.Flags().GetString("category")
		memo, _ := cmd.Flags().GetString("memo")
		date := dateFlag(cmd, "date")
		amount := amountArg(args[1])
		requireOwner()

		ctx := context.Background()
		a := mustOpenApp(ctx)
		defer a.close()

		rec, err := a.writes.Create(ctx, &schema.DailyLog{
			Recipient: args[0],
			Amount:    amount,
			Direction: direction,
			Category:  category,
			Date:      date,
			Memo:      memo,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		fmt.Printf("%s Logged %s %s to %s on %s\n",
			ui.RenderPass("✓"), rec.RecordID(), amount.StringFixed(2), args[0], date.Format("2006-01-02"))
		printWriteMode(a)
	},
}

var contactCmd = &cobra.Command{
	Use:     "contact",
	GroupID: "records",
	Short:   "Manage buyer and seller contacts",
}

var contactAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a contact",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		role, _ := cmd.Flags().GetString("role")
		phone, _ := cmd.Flags().GetString("phone")
		address, _ := cmd.Flags().GetString("address")
		requireOwner()

		ctx := context.Background()
		a := mustOpenApp(ctx)
		defer a.close()

		rec, err := a.writes.Create(ctx, &schema.Contact{
			Role:    role,
			Name:    strings.Join(args, " "),
			Phone:   phone,
			Address: address,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		fmt.Printf("%s Added %s %s\n", ui.RenderPass("✓"), role, rec.RecordID())
		printWriteMode(a)
	},
}

// dateFlag parses a date flag, exiting on bad input.
func dateFlag(cmd *cobra.Command, name string) time.Time {
	s, _ := cmd.Flags().GetString(name)
	t, err := parseDate(s, time.Now())
	if err != nil {
		fatalf("--%s: %v", name, err)
	}
	return t
}

// amountArg parses a positive decimal amount, exiting on bad input.
func amountArg(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		fatalf("invalid amount %q", s)
	}
	if !d.IsPositive() {
		fatalf("amount must be positive, got %s", s)
	}
	return d
}

func init() {
	paymentAddCmd.Flags().String("direction", schema.DirectionIn, "in (received) or out (paid)")
	paymentAddCmd.Flags().String("method", "cash", "Payment method")
	paymentAddCmd.Flags().String("date", "", "Payment date (default: now)")
	paymentCmd.AddCommand(paymentAddCmd)
	rootCmd.AddCommand(paymentCmd)

	noteCmd.AddCommand(noteAddCmd)
	rootCmd.AddCommand(noteCmd)

	attachCmd.Flags().String("type", "", "Content type (default: from the file extension)")
	rootCmd.AddCommand(attachCmd)

	logAddCmd.Flags().String("direction", schema.DirectionOut, "in or out")
	logAddCmd.Flags().String("category", "general", "Ledger category")
	logAddCmd.Flags().String("memo", "", "Free-text memo")
	logAddCmd.Flags().String("date", "", "Entry date (default: today)")
	logCmd.AddCommand(logAddCmd)
	rootCmd.AddCommand(logCmd)

	contactAddCmd.Flags().String("role", schema.RoleBuyer, "buyer or seller")
	contactAddCmd.Flags().String("phone", "", "Phone number")
	contactAddCmd.Flags().String("address", "", "Postal address")
	contactCmd.AddCommand(contactAddCmd)
	rootCmd.AddCommand(contactCmd)
}
