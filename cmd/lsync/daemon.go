package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ledgerline/ledgersync/internal/daemon"
	"github.com/ledgerline/ledgersync/internal/dashboard"
	"github.com/ledgerline/ledgersync/internal/legacy"
	"github.com/ledgerline/ledgersync/internal/syncer"
	"github.com/ledgerline/ledgersync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Keep the stores converged in the foreground",
	Long: `Run the sync daemon in the foreground until interrupted.

The daemon will:
  1. Import the configured legacy export and any exports in the import directory
  2. Sync on start and whenever the remote becomes reachable again
  3. Run a full sync every sync.interval while online
  4. Import new .jsonl exports dropped into the import directory

With --dashboard (or dashboard.enabled) sync progress is served over WebSocket:
  ws://localhost:8080/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		owner := requireOwner()
		if cmd.Flags().Changed("dashboard") {
			cfg.Dashboard.Enabled, _ = cmd.Flags().GetBool("dashboard")
		}
		if cmd.Flags().Changed("port") {
			cfg.Dashboard.Port, _ = cmd.Flags().GetInt("port")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var (
			server    *dashboard.Server
			observers []syncer.Observer
		)
		if cfg.Dashboard.Enabled {
			server = dashboard.NewServer(&dashboard.Config{Port: cfg.Dashboard.Port, Logger: log})
			observers = append(observers, dashboard.NewHandler(server))
		}

		a := mustOpenApp(ctx, observers...)
		defer a.close()

		if server != nil {
			server.SetStatus(a.syncer.Status)
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
				return
			}
			defer func() { _ = server.Stop() }()
		}

		a.probe.Start(ctx)

		d, err := daemon.New(a.syncer, a.probe, legacy.NewImporter(a.local, log), &daemon.Config{
			Owner:        owner,
			SyncInterval: cfg.Sync.Interval,
			LegacyPath:   cfg.Legacy.Path,
			ImportDir:    cfg.Legacy.ImportDir,
			Logger:       log,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
			return
		}

		fmt.Printf("%s Starting sync daemon for %s...\n", ui.RenderAccent("🚀"), owner)
		fmt.Printf("   Local: %s\n", a.local.Path())
		fmt.Printf("   Remote: %s\n", a.remote.Dialect())
		if cfg.Legacy.ImportDir != "" {
			fmt.Printf("   Import dir: %s\n", cfg.Legacy.ImportDir)
		}
		if server != nil {
			fmt.Printf("   Dashboard: http://%s\n", server.GetAddr())
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
		}
	},
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "Serve the WebSocket dashboard")
	daemonCmd.Flags().IntP("port", "p", 8080, "Dashboard port")
	rootCmd.AddCommand(daemonCmd)
}
