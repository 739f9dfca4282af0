package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutorkit/tutorkit/internal/config"
	"github.com/tutorkit/tutorkit/internal/remote"
	"github.com/tutorkit/tutorkit/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Manage tut configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with current settings",
	Run: func(cmd *cobra.Command, args []string) {
		dir := cfgDir
		if dir == "" {
			dir = config.DefaultDir()
		}
		if err := config.Write(dir, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Wrote %s/config.yaml\n", ui.RenderPass("✓"), dir)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("\n%s\n\n", ui.RenderHeader("Configuration"))
		fmt.Printf("Data dir: %s\n", cfg.DataDir)
		if cfg.Remote.URL == "" {
			fmt.Printf("Remote: %s\n", ui.RenderMuted("not configured"))
		} else {
			fmt.Printf("Remote: %s (user %s)\n", cfg.Remote.URL, orUnset(cfg.Remote.UserID))
		}
		fmt.Printf("Staleness window: %dh\n", cfg.Sync.StalenessWindowHours)
		fmt.Printf("Queue retry bound: %d\n", cfg.Sync.MaxRetries)
		fmt.Printf("Provider: %s (%s)\n", cfg.Provider.Name, orUnset(cfg.Provider.Model))
		fmt.Printf("Log file: %s\n", cfg.Log.File)
		fmt.Println()
	},
}

var configInitRemoteCmd = &cobra.Command{
	Use:   "init-remote",
	Short: "Create the remote database schema",
	Long: `Create the users, sessions, messages, and cards tables in the
configured remote database. Safe to run repeatedly.`,
	Run: func(cmd *cobra.Command, args []string) {
		if cfg.Remote.URL == "" {
			fmt.Fprintf(os.Stderr, "Error: no remote URL configured\n")
			os.Exit(1)
		}
		dsn, err := remote.DSN(cfg.Remote.URL, cfg.Remote.AuthToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		db, err := remote.Open(dsn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening remote database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.InitSchema(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Remote schema ready\n", ui.RenderPass("✓"))
	},
}

func orUnset(s string) string {
	if s == "" {
		return ui.RenderMuted("unset")
	}
	return s
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitRemoteCmd)
	rootCmd.AddCommand(configCmd)
}
