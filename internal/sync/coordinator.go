package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	gosync "sync"
	"time"

	"github.com/tutorkit/tutorkit/internal/classify"
	"github.com/tutorkit/tutorkit/internal/model"
	"github.com/tutorkit/tutorkit/internal/queue"
	"github.com/tutorkit/tutorkit/internal/remote"
	"github.com/tutorkit/tutorkit/internal/scheduler"
	"github.com/tutorkit/tutorkit/internal/store"
)

// ErrValidation marks a malformed record rejected at the coordinator
// boundary, before it touches storage or the network.
var ErrValidation = errors.New("sync: validation failed")

// Coordinator accepts writes, commits them locally, and propagates critical
// records to the remote store directly or through the offline queue.
type Coordinator struct {
	store      *store.Store
	queue      *queue.Queue
	remote     Remote
	classifier *classify.Classifier
	logger     *log.Logger

	mu         gosync.Mutex
	state      State
	online     bool
	lastSyncAt *time.Time
	observers  []Observer
}

// New wires a coordinator from its collaborators.
// If logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, q *queue.Queue, rm Remote, cl *classify.Classifier, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	if cl == nil {
		cl = classify.New(0)
	}
	return &Coordinator{
		store:      st,
		queue:      q,
		remote:     rm,
		classifier: cl,
		logger:     logger,
		state:      StateIdle,
	}
}

// Subscribe registers an observer for coordinator events.
func (c *Coordinator) Subscribe(obs Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

func (c *Coordinator) emit(ev Event) {
	c.mu.Lock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()
	for _, obs := range observers {
		obs(ev)
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// SetOnline records the connectivity state reported by the probe or the
// platform. Transitioning to online does not drain by itself; callers
// invoke SyncNow (the daemon does this automatically).
func (c *Coordinator) SetOnline(online bool) {
	c.mu.Lock()
	c.online = online
	c.mu.Unlock()
}

// Online reports the last known connectivity state.
func (c *Coordinator) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// Status returns the sync-status snapshot consumed by the UI.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		IsOnline:   c.online,
		QueueSize:  c.queue.Len(),
		LastSyncAt: c.lastSyncAt,
	}
}

// Probe checks remote connectivity and updates the online flag. A
// coordinator built without a remote is permanently offline.
func (c *Coordinator) Probe(ctx context.Context) bool {
	if c.remote == nil {
		c.SetOnline(false)
		return false
	}
	err := c.remote.Ping(ctx)
	online := err == nil
	c.SetOnline(online)
	return online
}

// SaveSession validates, commits locally, then propagates when the session
// is critical. The local write always happens and is never rolled back.
func (c *Coordinator) SaveSession(ctx context.Context, sess *model.Session) error {
	sess.SetDefaults()
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := c.store.SaveSession(sess); err != nil {
		return err
	}
	c.setState(StateLocalCommitted)
	c.emit(Event{Type: EventLocalCommit, SessionID: sess.ID, Detail: "session"})

	if c.classifier.Session(sess) == classify.Temporary {
		c.setState(StateIdle)
		return nil
	}
	err := c.propagate(ctx, queue.ActionSaveSession, sess.ID, sess, func(ctx context.Context) error {
		return c.remote.UpsertSession(ctx, sess)
	})
	c.setState(StateIdle)
	return err
}

// AppendMessages validates and appends chat turns to a session. The
// messages are propagated only when the owning session is critical.
func (c *Coordinator) AppendMessages(ctx context.Context, sessionID string, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	for i := range msgs {
		msgs[i].SessionID = sessionID
		msgs[i].SetDefaults()
		if err := msgs[i].Validate(); err != nil {
			return fmt.Errorf("%w: message %d: %v", ErrValidation, i, err)
		}
	}

	if err := c.store.AppendMessages(sessionID, msgs...); err != nil {
		return err
	}
	c.setState(StateLocalCommitted)
	c.emit(Event{Type: EventLocalCommit, SessionID: sessionID, Detail: fmt.Sprintf("%d messages", len(msgs))})

	sess, err := c.store.GetSession(sessionID)
	if err != nil {
		c.setState(StateIdle)
		return err
	}
	if c.classifier.Session(sess) == classify.Temporary {
		c.setState(StateIdle)
		return nil
	}
	err = c.propagateMessages(ctx, sessionID, msgs)
	c.setState(StateIdle)
	return err
}

// SaveCard validates and commits a flashcard. New cards are primed with the
// scheduler's initial delay. Cards are always critical; the owning session
// becomes critical with them, so both propagate.
func (c *Coordinator) SaveCard(ctx context.Context, card *model.Card) error {
	card.SetDefaults()
	scheduler.Prime(card, time.Now())
	if err := card.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := c.store.UpsertCard(card); err != nil {
		return err
	}
	c.setState(StateLocalCommitted)
	c.emit(Event{Type: EventLocalCommit, SessionID: card.SessionID, Detail: "card " + card.ID})

	// Session first: the card row references it remotely.
	sess, err := c.store.GetSession(card.SessionID)
	if err != nil {
		c.setState(StateIdle)
		return err
	}
	if err := c.propagate(ctx, queue.ActionSaveSession, sess.ID, sess, func(ctx context.Context) error {
		return c.remote.UpsertSession(ctx, sess)
	}); err != nil {
		c.setState(StateIdle)
		return err
	}
	err = c.propagate(ctx, queue.ActionSaveCard, card.SessionID, card, func(ctx context.Context) error {
		return c.remote.UpsertCard(ctx, card)
	})
	c.setState(StateIdle)
	return err
}

// ReviewCard applies a recall-quality score through the review scheduler
// and commits the rescheduled card. The scheduler never touches the
// network; propagation follows the usual card path.
func (c *Coordinator) ReviewCard(ctx context.Context, cardID string, quality int) (model.Card, error) {
	card, err := c.store.GetCard(cardID)
	if err != nil {
		return model.Card{}, err
	}
	updated, err := scheduler.Schedule(*card, quality, time.Now())
	if err != nil {
		return model.Card{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := c.store.UpsertCard(&updated); err != nil {
		return model.Card{}, err
	}
	c.setState(StateLocalCommitted)
	c.emit(Event{Type: EventLocalCommit, SessionID: updated.SessionID, Detail: "review " + updated.ID})

	err = c.propagate(ctx, queue.ActionSaveCard, updated.SessionID, &updated, func(ctx context.Context) error {
		return c.remote.UpsertCard(ctx, &updated)
	})
	c.setState(StateIdle)
	return updated, err
}

// DeleteSession removes a session locally and propagates the delete.
func (c *Coordinator) DeleteSession(ctx context.Context, sessionID string) error {
	if err := c.store.DeleteSession(sessionID); err != nil {
		return err
	}
	c.setState(StateLocalCommitted)
	c.emit(Event{Type: EventLocalCommit, SessionID: sessionID, Detail: "delete"})

	err := c.propagate(ctx, queue.ActionDeleteSession, sessionID, sessionID, func(ctx context.Context) error {
		return c.remote.DeleteSession(ctx, sessionID)
	})
	c.setState(StateIdle)
	return err
}

// propagate attempts an immediate remote call when online, falling back to
// the offline queue. Auth errors short-circuit: retrying cannot fix a
// missing session, so nothing is enqueued and the error surfaces. Other
// remote failures are absorbed into the queue and surfaced only through
// Status and drain reports.
func (c *Coordinator) propagate(ctx context.Context, action queue.Action, sessionID string, payload any, call func(context.Context) error) error {
	if c.Online() {
		c.setState(StateSyncing)
		err := call(ctx)
		if err == nil {
			c.markSynced()
			c.emit(Event{Type: EventRemoteSync, SessionID: sessionID, Detail: string(action)})
			return nil
		}
		if errors.Is(err, remote.ErrNotSignedIn) {
			return err
		}
		c.logger.Printf("Remote %s failed, queueing: %v", action, err)
		c.SetOnline(false)
	}

	if _, err := c.queue.Enqueue(action, sessionID, payload); err != nil {
		return err
	}
	c.emit(Event{Type: EventEnqueued, SessionID: sessionID, Detail: string(action)})
	return nil
}

// propagateMessages is propagate specialized for the partial-success
// message batch: only the failed sub-operations are requeued.
func (c *Coordinator) propagateMessages(ctx context.Context, sessionID string, msgs []model.Message) error {
	if c.Online() {
		c.setState(StateSyncing)
		result, err := c.remote.UpsertMessages(ctx, sessionID, msgs)
		if err == nil && result.Ok() {
			c.markSynced()
			c.emit(Event{Type: EventRemoteSync, SessionID: sessionID, Detail: string(queue.ActionSaveMessages)})
			return nil
		}
		if errors.Is(err, remote.ErrNotSignedIn) {
			return err
		}
		if err == nil {
			// Partial failure: requeue only what didn't apply.
			failed := make(map[string]bool, len(result.Failed))
			for _, f := range result.Failed {
				failed[f.ID] = true
			}
			var requeue []model.Message
			for _, m := range msgs {
				if failed[m.ID] {
					requeue = append(requeue, m)
				}
			}
			msgs = requeue
			c.logger.Printf("Partial message sync for %s: requeueing %d of %d", sessionID, len(requeue), result.Applied+len(requeue))
		} else {
			c.logger.Printf("Remote %s failed, queueing: %v", queue.ActionSaveMessages, err)
			c.SetOnline(false)
		}
	}

	if _, err := c.queue.Enqueue(queue.ActionSaveMessages, sessionID, msgs); err != nil {
		return err
	}
	c.emit(Event{Type: EventEnqueued, SessionID: sessionID, Detail: string(queue.ActionSaveMessages)})
	return nil
}

// SyncNow drains the offline queue through the remote adapter. Invoked on
// a connectivity-restored signal or an explicit user action.
func (c *Coordinator) SyncNow(ctx context.Context) (queue.DrainResult, error) {
	if !c.Probe(ctx) {
		return queue.DrainResult{}, fmt.Errorf("sync: remote unreachable")
	}

	c.setState(StateSyncing)
	result, err := c.queue.Drain(ctx, c.applyItem)
	c.setState(StateDrained)

	if result.Processed > 0 {
		c.markSynced()
	}
	for _, f := range result.Dropped() {
		c.emit(Event{Type: EventSyncFailed, SessionID: f.Item.SessionID,
			Detail: fmt.Sprintf("%s dropped after %d attempts", f.Item.Action, f.Item.RetryCount)})
	}
	c.emit(Event{Type: EventQueueDrain,
		Detail: fmt.Sprintf("processed=%d failed=%d", result.Processed, len(result.Failed))})

	c.setState(StateIdle)
	return result, err
}

// applyItem replays one queued operation against the remote adapter.
func (c *Coordinator) applyItem(ctx context.Context, item queue.Item) error {
	var err error
	switch item.Action {
	case queue.ActionSaveSession:
		var sess model.Session
		if err = json.Unmarshal(item.Data, &sess); err == nil {
			err = c.remote.UpsertSession(ctx, &sess)
		}
	case queue.ActionSaveMessages:
		var msgs []model.Message
		if err = json.Unmarshal(item.Data, &msgs); err == nil {
			var result remote.MessageResult
			result, err = c.remote.UpsertMessages(ctx, item.SessionID, msgs)
			if err == nil && !result.Ok() {
				// Upserts are idempotent, so retrying the whole batch is safe.
				err = fmt.Errorf("%d of %d messages failed", len(result.Failed), len(msgs))
			}
		}
	case queue.ActionSaveCard:
		var card model.Card
		if err = json.Unmarshal(item.Data, &card); err == nil {
			err = c.remote.UpsertCard(ctx, &card)
		}
	case queue.ActionDeleteSession:
		err = c.remote.DeleteSession(ctx, item.SessionID)
	default:
		err = fmt.Errorf("unknown queue action %q", item.Action)
	}

	if errors.Is(err, remote.ErrNotSignedIn) {
		return fmt.Errorf("%w: %v", queue.ErrUnrecoverable, err)
	}
	return err
}

func (c *Coordinator) markSynced() {
	now := time.Now().UTC()
	c.mu.Lock()
	c.lastSyncAt = &now
	c.mu.Unlock()
}
