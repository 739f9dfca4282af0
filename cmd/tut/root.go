// tut is a document-driven tutoring CLI with local-first persistence.
//
// All records live in a local JSON blob under the data directory. When a
// remote database is configured, critical records mirror there through a
// durable offline queue.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tutorkit/tutorkit/internal/classify"
	"github.com/tutorkit/tutorkit/internal/config"
	"github.com/tutorkit/tutorkit/internal/queue"
	"github.com/tutorkit/tutorkit/internal/remote"
	"github.com/tutorkit/tutorkit/internal/store"
	tsync "github.com/tutorkit/tutorkit/internal/sync"
)

var (
	cfgDir string
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tut",
	Short: "Document-driven tutoring with local-first persistence",
	Long: `tut turns any document into an interactive study session.

Sessions, chat history, and flashcards persist to a local store first;
user-curated records sync to a hosted database when one is configured.
Offline changes queue durably and replay on reconnect.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config-dir", "", "Config directory (default ~/.tutorkit)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "study", Title: "Study Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger returns a logger with the given prefix. Daemon-style commands
// pass rotate=true to write through lumberjack instead of stderr.
func newLogger(prefix string, rotate bool) *log.Logger {
	var w io.Writer = os.Stderr
	if rotate && cfg.Log.File != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
	}
	return log.New(w, prefix, log.LstdFlags)
}

// openStore opens the local store in the configured data directory.
func openStore(logger *log.Logger) (*store.Store, error) {
	fs, err := store.NewFileStorage(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening data directory: %w", err)
	}
	return store.New(fs, logger), nil
}

// buildCoordinator wires the full sync stack. The returned closer releases
// the remote connection; callers must invoke it. When no remote URL is
// configured the coordinator still works, permanently offline.
func buildCoordinator(logger *log.Logger) (*tsync.Coordinator, func(), error) {
	st, err := openStore(logger)
	if err != nil {
		return nil, nil, err
	}

	q, err := queue.NewWithRetries(st.RawStorage(), logger, cfg.Sync.MaxRetries)
	if err != nil {
		return nil, nil, fmt.Errorf("opening offline queue: %w", err)
	}

	cl := classify.New(cfg.StalenessWindow())

	var rm tsync.Remote
	closer := func() {}
	if cfg.Remote.URL != "" {
		dsn, err := remote.DSN(cfg.Remote.URL, cfg.Remote.AuthToken)
		if err != nil {
			return nil, nil, err
		}
		db, err := remote.Open(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("opening remote database: %w", err)
		}
		rm = remote.NewAdapter(db, cfg.Remote.UserID, logger)
		closer = func() { _ = db.Close() }
	}

	co := tsync.New(st, q, rm, cl, logger)
	return co, closer, nil
}
