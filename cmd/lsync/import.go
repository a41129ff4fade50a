package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgersync/internal/legacy"
	"github.com/ledgerline/ledgersync/internal/schema"
	"github.com/ledgerline/ledgersync/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import [file-or-dir...]",
	GroupID: "maint",
	Short:   "Import JSONL exports of the legacy document store",
	Long: `Import exports written by the previous document-store app into the local store.

Each line of an export is {"collection": "...", "doc": {...}}. Supported
collections: ` + strings.Join(legacy.Collections(), ", ") + `.

Without arguments, legacy.path and every *.jsonl file in legacy.import_dir are
imported. Records whose id already exists locally are skipped, so re-running
an import is safe. Imported files are renamed with an .imported suffix unless
--keep or --dry-run is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		keep, _ := cmd.Flags().GetBool("keep")
		owner := requireOwner()

		paths := args
		if len(paths) == 0 {
			for _, p := range []string{cfg.Legacy.Path, cfg.Legacy.ImportDir} {
				if p == "" {
					continue
				}
				if _, err := os.Stat(p); err == nil {
					paths = append(paths, p)
				}
			}
		}
		if len(paths) == 0 {
			fatalf("nothing to import (pass a file or set legacy.path)")
		}

		ctx := context.Background()
		a := mustOpenApp(ctx)
		defer a.close()

		im := legacy.NewImporter(a.local, log)
		opts := legacy.Options{DryRun: dryRun, KeepFile: keep, Owner: owner}

		total := legacy.NewResult()
		for _, p := range paths {
			info, err := os.Stat(p)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return
			}

			var res *legacy.Result
			if info.IsDir() {
				res, err = im.ImportDir(ctx, p, opts)
			} else {
				res, err = im.ImportFile(ctx, p, opts)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error importing %s: %v\n", p, err)
				return
			}
			total.Merge(res)
		}

		printImport(total, dryRun)
	},
}

func printImport(res *legacy.Result, dryRun bool) {
	var rows [][]string
	for _, k := range schema.Kinds() {
		if n, ok := res.ByKind[k]; ok {
			rows = append(rows, []string{string(k), fmt.Sprint(n)})
		}
	}
	if len(rows) > 0 {
		fmt.Println(ui.Table([]string{"KIND", "IMPORTED"}, rows))
		fmt.Println()
	}

	for _, e := range res.Errors {
		fmt.Printf("%s %s\n", ui.RenderWarn("⚠"), e)
	}

	verb := "Imported"
	if dryRun {
		verb = "Would import"
	}
	fmt.Printf("%s %s %d of %s from %s (%d skipped)\n",
		ui.RenderPass("✓"), verb, res.Imported, ui.Count(res.Read, "line"), ui.Count(len(res.Files), "file"), res.Skipped)
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "Validate and count without writing")
	importCmd.Flags().Bool("keep", false, "Do not rename imported files")
	rootCmd.AddCommand(importCmd)
}
