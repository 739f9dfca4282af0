// Package daemon provides the background sync daemon.
//
// The daemon:
//  1. Probes remote connectivity on an interval and drains the offline
//     queue whenever connectivity is (re)confirmed
//  2. Watches the data directory so a queue file touched by another
//     process triggers a debounced drain
//  3. Periodically prunes stale temporary sessions
//  4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tutorkit/tutorkit/internal/cleanup"
	tsync "github.com/tutorkit/tutorkit/internal/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// ProbeInterval is how often to check remote connectivity.
	ProbeInterval time.Duration

	// CleanupInterval is how often to prune stale temporary sessions.
	CleanupInterval time.Duration

	// DebounceInterval is how long to wait before reacting to file
	// changes. This batches rapid updates together.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger

	// OnCleanup, when set, is called after each successful cleanup pass
	// with the number of sessions removed and kept.
	OnCleanup func(removed, kept int)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ProbeInterval:    30 * time.Second,
		CleanupInterval:  1 * time.Hour,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates connectivity probing, queue draining, and cleanup.
type Daemon struct {
	coordinator *tsync.Coordinator
	pruner      *cleanup.Pruner
	dataDir     string
	config      *Config

	watcher     *fsnotify.Watcher
	pendingMu   sync.Mutex
	pendingAt   time.Time
	drainWanted bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Daemon watching the given data directory.
func New(co *tsync.Coordinator, pr *cleanup.Pruner, dataDir string, config *Config) (*Daemon, error) {
	if co == nil {
		return nil, fmt.Errorf("coordinator cannot be nil")
	}
	if dataDir == "" {
		return nil, fmt.Errorf("dataDir cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		coordinator: co,
		pruner:      pr,
		dataDir:     dataDir,
		config:      config,
		watcher:     watcher,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins the daemon's operation. Blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting sync daemon")

	if err := d.watcher.Add(d.dataDir); err != nil {
		return fmt.Errorf("failed to watch data directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.dataDir)

	// Initial probe and drain so pending work from a previous run moves
	// as soon as the daemon is up.
	if d.coordinator.Probe(d.ctx) {
		d.drain()
	}

	d.wg.Add(3)
	go d.watchFileEvents()
	go d.probeLoop()
	go d.cleanupLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon. A drain in progress finishes its
// current item; nothing is cancelled mid-apply.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")
	d.cancel()
	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}
	d.wg.Wait()
	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents monitors the data directory for queue changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// Only the queue file matters; blob rewrites happen on every
			// local commit and would thrash the drain path.
			if filepath.Base(event.Name) != "queue.json" {
				continue
			}
			d.pendingMu.Lock()
			d.pendingAt = time.Now()
			d.drainWanted = true
			d.pendingMu.Unlock()

		case <-ticker.C:
			d.pendingMu.Lock()
			want := d.drainWanted && time.Since(d.pendingAt) >= d.config.DebounceInterval
			if want {
				d.drainWanted = false
			}
			d.pendingMu.Unlock()
			if want && d.coordinator.Online() {
				d.drain()
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// probeLoop periodically checks connectivity and drains on restoration.
func (d *Daemon) probeLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ProbeInterval)
	defer ticker.Stop()

	wasOnline := d.coordinator.Online()
	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			online := d.coordinator.Probe(d.ctx)
			if online && !wasOnline {
				d.config.Logger.Println("Connectivity restored")
				d.drain()
			}
			if online && d.coordinator.Status().QueueSize > 0 {
				d.drain()
			}
			wasOnline = online
		}
	}
}

// cleanupLoop periodically prunes stale temporary sessions.
func (d *Daemon) cleanupLoop() {
	defer d.wg.Done()

	if d.pruner == nil {
		return
	}

	ticker := time.NewTicker(d.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			result, err := d.pruner.Prune(time.Now(), false)
			if err != nil {
				d.config.Logger.Printf("Cleanup error: %v", err)
				continue
			}
			if len(result.Removed) > 0 {
				d.config.Logger.Printf("Cleanup removed %d stale sessions", len(result.Removed))
			}
			if d.config.OnCleanup != nil {
				d.config.OnCleanup(len(result.Removed), result.Kept)
			}
		}
	}
}

// drain runs one queue drain pass, logging the outcome.
func (d *Daemon) drain() {
	result, err := d.coordinator.SyncNow(d.ctx)
	if err != nil {
		d.config.Logger.Printf("Drain error: %v", err)
		return
	}
	if result.Processed > 0 || len(result.Failed) > 0 {
		d.config.Logger.Printf("Drain complete: processed=%d failed=%d dropped=%d",
			result.Processed, len(result.Failed), len(result.Dropped()))
	}
}
