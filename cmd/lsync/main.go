// Command lsync keeps a device's local ledger store and the shared remote
// backend in step.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgersync/internal/config"
	"github.com/ledgerline/ledgersync/internal/logging"
)

var (
	configFile string
	ownerFlag  string
	verbose    bool

	cfg *config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lsync",
	Short: "Offline-first ledger replication",
	Long: `lsync writes ledger records to a local embedded store and replicates them
to a shared relational backend (SQLite file, libSQL/Turso or MySQL).

Writes always land locally first and are mirrored when the backend is
reachable. 'lsync sync' reconciles both stores; 'lsync daemon' keeps them
converged in the background.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if ownerFlag != "" {
			cfg.OwnerID = ownerFlag
		}

		logCfg := cfg.LoggingConfig()
		if verbose {
			logCfg.Level = "debug"
		}
		log, err = logging.New(logCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "records", Title: "Records:"},
		&cobra.Group{ID: "maint", Title: "Maintenance:"},
	)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./lsync.yaml or ~/.config/lsync/lsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "Owner id (overrides owner_id)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
