package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tutorkit/tutorkit/internal/classify"
	"github.com/tutorkit/tutorkit/internal/cleanup"
	"github.com/tutorkit/tutorkit/internal/daemon"
	"github.com/tutorkit/tutorkit/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background sync daemon (foreground)",
	Long: `Run the sync daemon in the foreground.

The daemon:
  1. Probes remote connectivity and drains the offline queue on reconnect
  2. Watches the data directory so queue writes from other tut processes
     trigger a drain
  3. Periodically removes stale temporary sessions

Logs go to the rotating log file configured under log.file.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger("[daemon] ", true)

		co, closer, err := buildCoordinator(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closer()

		st, err := openStore(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		pruner := cleanup.New(st, classify.New(cfg.StalenessWindow()), logger)

		dcfg := daemon.DefaultConfig()
		dcfg.ProbeInterval = cfg.ProbeInterval()
		dcfg.Logger = logger

		d, err := daemon.New(co, pruner, cfg.DataDir, dcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Sync daemon running (data dir %s)\n", ui.RenderAccent("●"), cfg.DataDir)
		fmt.Println("Press Ctrl+C to stop")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
