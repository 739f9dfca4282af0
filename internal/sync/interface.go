// Package sync orchestrates local durability and best-effort remote
// propagation.
//
// Every write commits to the local store first, unconditionally; the local
// write is never rolled back because a downstream remote operation failed.
// The classifier then decides whether the record must reach the remote
// store. Critical records sync immediately when online; otherwise the
// operation lands in the durable offline queue and is replayed when
// connectivity returns.
package sync

import (
	"context"
	"time"

	"github.com/tutorkit/tutorkit/internal/model"
	"github.com/tutorkit/tutorkit/internal/remote"
)

// Remote is the subset of the remote adapter the coordinator needs.
// All operations are idempotent upserts or deletes keyed by record id.
type Remote interface {
	// UpsertSession writes a session row scoped to the authenticated owner.
	UpsertSession(ctx context.Context, sess *model.Session) error

	// UpsertMessages writes message rows, returning a partial-success
	// result so the caller can requeue only the failed sub-operations.
	UpsertMessages(ctx context.Context, sessionID string, msgs []model.Message) (remote.MessageResult, error)

	// UpsertCard writes a card row scoped to the authenticated owner.
	UpsertCard(ctx context.Context, card *model.Card) error

	// DeleteSession removes a session, cascading to messages and cards.
	DeleteSession(ctx context.Context, sessionID string) error

	// Ping verifies connectivity. Used as the online probe.
	Ping(ctx context.Context) error
}

// State is the coordinator's position in its write/drain cycle.
type State string

const (
	// StateIdle means no write or drain is in progress.
	StateIdle State = "idle"
	// StateLocalCommitted means the local store write succeeded and remote
	// propagation is being decided.
	StateLocalCommitted State = "local_committed"
	// StateSyncing means a remote call or queue drain is in flight.
	StateSyncing State = "syncing"
	// StateDrained means a drain pass just finished; the coordinator
	// returns to idle after reporting.
	StateDrained State = "drained"
)

// Status is the sync-status snapshot consumed by the UI.
type Status struct {
	IsOnline   bool       `json:"isOnline"`
	QueueSize  int        `json:"queueSize"`
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`
}

// EventType identifies a coordinator event for observers.
type EventType string

const (
	EventLocalCommit EventType = "local_commit"
	EventRemoteSync  EventType = "remote_sync"
	EventEnqueued    EventType = "enqueued"
	EventQueueDrain  EventType = "queue_drain"
	EventSyncFailed  EventType = "sync_failed"
)

// Event is a notification of coordinator activity, consumed by the
// dashboard and the daemon log.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Observer receives coordinator events. Implementations must not block.
type Observer func(Event)
