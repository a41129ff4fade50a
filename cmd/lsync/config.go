package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgersync/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "maint",
	Short:   "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after merging defaults, the config file and LSYNC_*
environment variables. Secrets are masked.`,
	Run: func(cmd *cobra.Command, args []string) {
		out, err := cfg.YAML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if cfg.File != "" {
			fmt.Println(ui.RenderMuted("# " + cfg.File))
		} else {
			fmt.Println(ui.RenderMuted("# no config file, defaults and environment only"))
		}
		fmt.Print(string(out))
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
