// Package queue implements the durable offline queue of pending remote
// operations.
//
// The queue persists under its own storage key, separate from the main
// store blob, so a corrupt blob never takes down pending-sync bookkeeping.
// Every enqueue is persisted immediately: a crash between enqueue and
// remote success never loses the operation.
//
// Drain processes items in FIFO order per target session while attempting
// independent targets concurrently. Two queued operations against the same
// session id are never in flight simultaneously; that keeps a stale upsert
// from clobbering a later delete.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/tutorkit/tutorkit/internal/model"
	"github.com/tutorkit/tutorkit/internal/store"
)

// queueKey is the storage key for the persisted item list.
const queueKey = "queue"

// DefaultMaxRetries is how many times a failing item is attempted before it
// is removed and reported as permanently failed.
const DefaultMaxRetries = 3

// ErrUnrecoverable marks an apply error that retrying cannot fix (for
// example a missing auth session). Drain stops immediately and leaves the
// remaining items queued without touching their retry counters.
var ErrUnrecoverable = errors.New("queue: unrecoverable apply error")

// Action identifies the kind of remote operation an item carries.
type Action string

const (
	ActionSaveSession   Action = "save-session"
	ActionSaveMessages  Action = "save-messages"
	ActionSaveCard      Action = "save-card"
	ActionDeleteSession Action = "delete-session"
)

// Item is one pending remote operation. The payload is a snapshot taken at
// enqueue time; the queue owns it until the operation is applied remotely.
type Item struct {
	ID         string          `json:"id"`
	Action     Action          `json:"action"`
	SessionID  string          `json:"session_id"`
	Data       json.RawMessage `json:"data"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retryCount"`
}

// Failure describes an item that did not apply during a drain.
type Failure struct {
	Item Item
	Err  error
	// Dropped is true when the item hit the retry bound and was removed.
	Dropped bool
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Processed int
	Failed    []Failure
}

// Dropped returns the permanently failed items from the pass.
func (r DrainResult) Dropped() []Failure {
	var out []Failure
	for _, f := range r.Failed {
		if f.Dropped {
			out = append(out, f)
		}
	}
	return out
}

// Applier performs one queued operation against the remote store.
type Applier func(ctx context.Context, item Item) error

// Queue is the durable pending-operation list.
type Queue struct {
	storage    store.Storage
	logger     *log.Logger
	maxRetries int

	mu    sync.Mutex
	items []Item
}

// New loads the persisted queue from storage. A missing key starts empty; a
// corrupt entry is logged and discarded rather than blocking startup.
func New(storage store.Storage, logger *log.Logger) (*Queue, error) {
	return NewWithRetries(storage, logger, DefaultMaxRetries)
}

// NewWithRetries is New with a custom retry bound.
func NewWithRetries(storage store.Storage, logger *log.Logger, maxRetries int) (*Queue, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[queue] ", log.LstdFlags)
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	q := &Queue{storage: storage, logger: logger, maxRetries: maxRetries}

	data, err := storage.Read(queueKey)
	if errors.Is(err, store.ErrNotFound) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load offline queue: %w", err)
	}
	if err := json.Unmarshal(data, &q.items); err != nil {
		logger.Printf("WARNING: corrupt offline queue, starting empty: %v", err)
		q.items = nil
	}
	return q, nil
}

// Enqueue appends an operation and persists the queue immediately.
// The payload is marshaled once, snapshotting the record as of now.
func (q *Queue) Enqueue(action Action, sessionID string, payload any) (Item, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Item{}, fmt.Errorf("failed to marshal queue payload: %w", err)
	}

	item := Item{
		ID:        model.NewID(),
		Action:    action,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	if err := q.persistLocked(); err != nil {
		q.items = q.items[:len(q.items)-1]
		return Item{}, err
	}
	return item, nil
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the pending items in enqueue order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Drain attempts every pending item through apply.
//
// Items are grouped by target session and groups run concurrently; within a
// group items apply in FIFO order, and a failure stops that group for this
// pass so later operations cannot overtake the failed one. Failed items
// below the retry bound stay queued; items at the bound are removed and
// reported as dropped. Only items that succeeded or were dropped are
// removed.
//
// An apply error wrapping ErrUnrecoverable aborts the drain without
// touching retry counters.
func (q *Queue) Drain(ctx context.Context, apply Applier) (DrainResult, error) {
	q.mu.Lock()
	pending := make([]Item, len(q.items))
	copy(pending, q.items)
	q.mu.Unlock()

	if len(pending) == 0 {
		return DrainResult{}, nil
	}

	// Group indexes by target, preserving FIFO within each group.
	groups := make(map[string][]int)
	var order []string
	for i, item := range pending {
		if _, seen := groups[item.SessionID]; !seen {
			order = append(order, item.SessionID)
		}
		groups[item.SessionID] = append(groups[item.SessionID], i)
	}

	var (
		resultMu      sync.Mutex
		result        DrainResult
		done          = make(map[string]bool) // item id -> remove from queue
		retried       = make(map[string]bool) // item id -> bump retry counter
		unrecoverable error
		wg            sync.WaitGroup
	)

	for _, target := range order {
		wg.Add(1)
		go func(indexes []int) {
			defer wg.Done()
			for _, i := range indexes {
				item := pending[i]
				if ctx.Err() != nil {
					return
				}
				err := apply(ctx, item)

				resultMu.Lock()
				if err == nil {
					done[item.ID] = true
					result.Processed++
					resultMu.Unlock()
					continue
				}
				if errors.Is(err, ErrUnrecoverable) {
					unrecoverable = err
					resultMu.Unlock()
					return
				}
				item.RetryCount++
				if item.RetryCount >= q.maxRetries {
					done[item.ID] = true
					result.Failed = append(result.Failed, Failure{Item: item, Err: err, Dropped: true})
					q.logger.Printf("Dropping %s for session %s after %d attempts: %v",
						item.Action, item.SessionID, item.RetryCount, err)
				} else {
					retried[item.ID] = true
					result.Failed = append(result.Failed, Failure{Item: item, Err: err})
					q.logger.Printf("Retry %d/%d for %s (session %s): %v",
						item.RetryCount, q.maxRetries, item.Action, item.SessionID, err)
				}
				resultMu.Unlock()
				// Later items for this target wait for the next drain.
				return
			}
		}(groups[target])
	}
	wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	var remaining []Item
	for _, item := range q.items {
		if done[item.ID] {
			continue
		}
		if retried[item.ID] {
			item.RetryCount++
		}
		remaining = append(remaining, item)
	}
	q.items = remaining
	if err := q.persistLocked(); err != nil {
		return result, err
	}

	if unrecoverable != nil {
		return result, unrecoverable
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// persistLocked rewrites the queue's storage entry. Caller holds q.mu.
func (q *Queue) persistLocked() error {
	items := q.items
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal offline queue: %w", err)
	}
	if err := q.storage.Write(queueKey, data); err != nil {
		return fmt.Errorf("failed to persist offline queue: %w", err)
	}
	return nil
}
