package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutorkit/tutorkit/internal/classify"
	"github.com/tutorkit/tutorkit/internal/cleanup"
	"github.com/tutorkit/tutorkit/internal/ui"
)

var cleanCmd = &cobra.Command{
	Use:     "clean",
	GroupID: "advanced",
	Short:   "Remove stale temporary sessions",
	Long: `Remove local sessions that are safe to discard.

A session is removed only when it has no bookmarked messages and no
cards, and has not been touched within the staleness window. Sessions
with any user-curated content are never touched.`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		logger := newLogger("[clean] ", false)
		st, err := openStore(logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		pruner := cleanup.New(st, classify.New(cfg.StalenessWindow()), logger)
		result, err := pruner.Prune(time.Now(), dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		verb := "Removed"
		if dryRun {
			verb = "Would remove"
		}
		fmt.Printf("%s %s %d stale sessions (%d kept)\n", ui.RenderPass("✓"), verb, len(result.Removed), result.Kept)
		for _, id := range result.Removed {
			fmt.Printf("   %s\n", ui.RenderMuted(id))
		}
	},
}

func init() {
	cleanCmd.Flags().Bool("dry-run", false, "Report what would be removed without deleting")
	rootCmd.AddCommand(cleanCmd)
}
