package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/tutorkit/tutorkit/internal/store"
)

func newTestQueue(t *testing.T, storage store.Storage) *Queue {
	t.Helper()
	q, err := New(storage, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return q
}

func TestQueue_EnqueuePersistsImmediately(t *testing.T) {
	ms := store.NewMemoryStorage()
	q := newTestQueue(t, ms)

	if _, err := q.Enqueue(ActionSaveSession, "s1", map[string]string{"id": "s1"}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}

	// A fresh queue over the same storage sees the item: survives restart.
	q2 := newTestQueue(t, ms)
	if q2.Len() != 1 {
		t.Errorf("reloaded Len() = %d, want 1", q2.Len())
	}
	items := q2.Items()
	if items[0].Action != ActionSaveSession || items[0].SessionID != "s1" {
		t.Errorf("reloaded item = %+v", items[0])
	}
}

func TestQueue_EnqueueRollsBackOnPersistFailure(t *testing.T) {
	ms := store.NewMemoryStorage()
	q := newTestQueue(t, ms)

	ms.FailWrites = true
	if _, err := q.Enqueue(ActionSaveCard, "s1", "payload"); err == nil {
		t.Fatal("Enqueue() with failing storage: expected error")
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after failed enqueue, want 0", q.Len())
	}
}

func TestQueue_CorruptStateStartsEmpty(t *testing.T) {
	ms := store.NewMemoryStorage()
	if err := ms.Write("queue", []byte("{{{")); err != nil {
		t.Fatal(err)
	}
	q := newTestQueue(t, ms)
	if q.Len() != 0 {
		t.Errorf("Len() = %d over corrupt state, want 0", q.Len())
	}
}

func TestQueue_DrainFIFOPerSession(t *testing.T) {
	q := newTestQueue(t, store.NewMemoryStorage())

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ActionSaveMessages, "s1", i); err != nil {
			t.Fatal(err)
		}
	}

	var got []string
	_, err := q.Drain(context.Background(), func(ctx context.Context, item Item) error {
		got = append(got, string(item.Data))
		return nil
	})
	if err != nil {
		t.Fatalf("Drain() error: %v", err)
	}
	want := []string{"0", "1", "2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("apply order = %v, want %v", got, want)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after full drain, want 0", q.Len())
	}
}

func TestQueue_DrainConcurrentSessionsIndependent(t *testing.T) {
	q := newTestQueue(t, store.NewMemoryStorage())

	if _, err := q.Enqueue(ActionSaveSession, "fails", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(ActionSaveSession, "works", "y"); err != nil {
		t.Fatal(err)
	}

	result, err := q.Drain(context.Background(), func(ctx context.Context, item Item) error {
		if item.SessionID == "fails" {
			return fmt.Errorf("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Drain() error: %v", err)
	}
	if result.Processed != 1 {
		t.Errorf("Processed = %d, want 1", result.Processed)
	}
	if len(result.Failed) != 1 {
		t.Errorf("Failed = %d, want 1", len(result.Failed))
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want the failed item retained", q.Len())
	}
}

func TestQueue_FailureBlocksLaterItemsForSameSession(t *testing.T) {
	q := newTestQueue(t, store.NewMemoryStorage())

	if _, err := q.Enqueue(ActionSaveSession, "s1", "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(ActionDeleteSession, "s1", "second"); err != nil {
		t.Fatal(err)
	}

	var applied []Action
	_, err := q.Drain(context.Background(), func(ctx context.Context, item Item) error {
		applied = append(applied, item.Action)
		return fmt.Errorf("remote down")
	})
	if err != nil {
		t.Fatalf("Drain() error: %v", err)
	}

	// Only the first item was attempted; the delete must not overtake it.
	if len(applied) != 1 || applied[0] != ActionSaveSession {
		t.Errorf("applied = %v, want only the first item attempted", applied)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want both items retained", q.Len())
	}
}

func TestQueue_RetryBoundDropsItem(t *testing.T) {
	ms := store.NewMemoryStorage()
	q := newTestQueue(t, ms)

	if _, err := q.Enqueue(ActionSaveCard, "s1", "x"); err != nil {
		t.Fatal(err)
	}

	alwaysFail := func(ctx context.Context, item Item) error {
		return fmt.Errorf("remote down")
	}

	// Attempts 1 and 2: retained with bumped counters.
	for attempt := 1; attempt <= 2; attempt++ {
		result, err := q.Drain(context.Background(), alwaysFail)
		if err != nil {
			t.Fatalf("Drain() %d error: %v", attempt, err)
		}
		if len(result.Dropped()) != 0 {
			t.Fatalf("attempt %d: dropped too early", attempt)
		}
		if q.Len() != 1 {
			t.Fatalf("attempt %d: Len() = %d, want 1", attempt, q.Len())
		}
		if got := q.Items()[0].RetryCount; got != attempt {
			t.Fatalf("attempt %d: RetryCount = %d, want %d", attempt, got, attempt)
		}
	}

	// Attempt 3 hits the bound: dropped and reported.
	result, err := q.Drain(context.Background(), alwaysFail)
	if err != nil {
		t.Fatalf("Drain() 3 error: %v", err)
	}
	dropped := result.Dropped()
	if len(dropped) != 1 {
		t.Fatalf("Dropped() = %d, want 1", len(dropped))
	}
	if dropped[0].Item.RetryCount != DefaultMaxRetries {
		t.Errorf("dropped RetryCount = %d, want %d", dropped[0].Item.RetryCount, DefaultMaxRetries)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after drop, want 0", q.Len())
	}

	// No fourth attempt happens.
	calls := 0
	if _, err := q.Drain(context.Background(), func(ctx context.Context, item Item) error {
		calls++
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("dropped item was attempted again: %d calls", calls)
	}
}

func TestQueue_RetryCountSurvivesRestart(t *testing.T) {
	ms := store.NewMemoryStorage()
	q := newTestQueue(t, ms)

	if _, err := q.Enqueue(ActionSaveSession, "s1", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Drain(context.Background(), func(ctx context.Context, item Item) error {
		return fmt.Errorf("down")
	}); err != nil {
		t.Fatal(err)
	}

	q2 := newTestQueue(t, ms)
	if got := q2.Items()[0].RetryCount; got != 1 {
		t.Errorf("reloaded RetryCount = %d, want 1", got)
	}
}

func TestQueue_UnrecoverableAbortsDrain(t *testing.T) {
	q := newTestQueue(t, store.NewMemoryStorage())

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ActionSaveSession, "s1", i); err != nil {
			t.Fatal(err)
		}
	}

	result, err := q.Drain(context.Background(), func(ctx context.Context, item Item) error {
		return fmt.Errorf("%w: signed out", ErrUnrecoverable)
	})
	if !errors.Is(err, ErrUnrecoverable) {
		t.Fatalf("Drain() error = %v, want ErrUnrecoverable", err)
	}
	if result.Processed != 0 {
		t.Errorf("Processed = %d, want 0", result.Processed)
	}
	if q.Len() != 3 {
		t.Errorf("Len() = %d, want all items retained", q.Len())
	}
	// Counters untouched: the failure was not the items' fault.
	for _, item := range q.Items() {
		if item.RetryCount != 0 {
			t.Errorf("RetryCount = %d, want 0", item.RetryCount)
		}
	}
}

func TestQueue_EnqueueDuringDrainIsPreserved(t *testing.T) {
	q := newTestQueue(t, store.NewMemoryStorage())

	if _, err := q.Enqueue(ActionSaveSession, "s1", "old"); err != nil {
		t.Fatal(err)
	}

	var once sync.Once
	_, err := q.Drain(context.Background(), func(ctx context.Context, item Item) error {
		once.Do(func() {
			if _, err := q.Enqueue(ActionSaveCard, "s2", "new"); err != nil {
				t.Errorf("Enqueue during drain: %v", err)
			}
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Drain() error: %v", err)
	}

	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want the newly enqueued item preserved", q.Len())
	}
	if got := q.Items()[0].Action; got != ActionSaveCard {
		t.Errorf("surviving item = %v, want the new enqueue", got)
	}
}
