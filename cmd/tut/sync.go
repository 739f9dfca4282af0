package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutorkit/tutorkit/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Replay queued operations against the remote store",
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Drain the offline queue",
	Long: `Probe the remote database and replay every queued operation.

Operations for the same session replay in order; independent sessions
replay concurrently. An operation that keeps failing is dropped after
its retry bound and reported here.`,
	Run: func(cmd *cobra.Command, args []string) {
		co, closer, err := buildCoordinator(newLogger("[sync] ", false))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closer()

		start := time.Now()
		result, err := co.SyncNow(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Sync failed: %v\n", ui.RenderError("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Applied: %d\n", result.Processed)
		if len(result.Failed) > 0 {
			fmt.Printf("   %s Retrying later: %d\n", ui.RenderWarn("⚠"), len(result.Failed)-len(result.Dropped()))
		}
		for _, f := range result.Dropped() {
			fmt.Printf("   %s Dropped %s for session %s after %d attempts: %v\n",
				ui.RenderError("✗"), f.Item.Action, shortID(f.Item.SessionID), f.Item.RetryCount, f.Err)
		}
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity and queue state",
	Run: func(cmd *cobra.Command, args []string) {
		co, closer, err := buildCoordinator(newLogger("[sync] ", false))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer closer()

		co.Probe(context.Background())
		status := co.Status()

		fmt.Printf("\n%s\n\n", ui.RenderHeader("Sync Status"))
		if cfg.Remote.URL == "" {
			fmt.Printf("Remote: %s\n", ui.RenderMuted("not configured"))
		} else if status.IsOnline {
			fmt.Printf("Remote: %s\n", ui.RenderPass("online"))
		} else {
			fmt.Printf("Remote: %s\n", ui.RenderWarn("offline"))
		}
		fmt.Printf("Queued operations: %d\n", status.QueueSize)
		if status.LastSyncAt != nil {
			fmt.Printf("Last sync: %s\n", status.LastSyncAt.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	},
}

func init() {
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
