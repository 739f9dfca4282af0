package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tutorkit/tutorkit/internal/classify"
	"github.com/tutorkit/tutorkit/internal/cleanup"
	"github.com/tutorkit/tutorkit/internal/daemon"
	"github.com/tutorkit/tutorkit/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Start the real-time sync dashboard",
	Long: `Start a WebSocket server broadcasting sync activity.

Connected clients receive:
- sync_event: local commits, remote syncs, enqueues, drains, failures
- status: connectivity and queue size after each event
- cleanup: stale-session cleanup results

The dashboard runs the sync daemon alongside the server, so the events
it broadcasts reflect live queue activity.

Connect with a WebSocket client:
  ws://localhost:8090/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = cfg.Dashboard.Port
		}

		logger := newLogger("[dashboard] ", true)

		co, closer, err := buildCoordinator(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closer()

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
		})
		server.Attach(co)

		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Dashboard server started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Health check: http://localhost:%d/health\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		// Run the daemon in the same process so the dashboard has live
		// events to broadcast.
		st, err := openStore(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		pruner := cleanup.New(st, classify.New(cfg.StalenessWindow()), logger)

		dcfg := daemon.DefaultConfig()
		dcfg.ProbeInterval = cfg.ProbeInterval()
		dcfg.Logger = logger
		dcfg.OnCleanup = server.BroadcastCleanup

		d, err := daemon.New(co, pruner, cfg.DataDir, dcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
			os.Exit(1)
		}
		go func() {
			if err := d.Start(ctx); err != nil {
				logger.Printf("Daemon error: %v", err)
			}
		}()

		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Dashboard server stopped")
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 0, "Port to listen on (default from config)")
	rootCmd.AddCommand(dashboardCmd)
}
