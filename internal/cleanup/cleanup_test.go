package cleanup

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/tutorkit/tutorkit/internal/classify"
	"github.com/tutorkit/tutorkit/internal/model"
	"github.com/tutorkit/tutorkit/internal/store"
)

func newTestPruner(t *testing.T) (*Pruner, *store.Store) {
	t.Helper()
	st := store.New(store.NewMemoryStorage(), log.New(io.Discard, "", 0))
	p := New(st, classify.New(7*24*time.Hour), log.New(io.Discard, "", 0))
	return p, st
}

func saveSession(t *testing.T, st *store.Store, id string, updatedAt time.Time, bookmarked bool) {
	t.Helper()
	sess := &model.Session{
		ID:        id,
		Title:     "Session " + id,
		Status:    model.StatusActive,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
		Messages: []model.Message{
			{ID: id + "-m1", SessionID: id, Role: model.RoleUser, Content: "hello",
				Bookmarked: bookmarked, CreatedAt: updatedAt},
		},
	}
	if err := st.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession(%s): %v", id, err)
	}
	// SaveSession stamps UpdatedAt with the current time; rewind it so the
	// session looks as old as the test needs.
	blob, err := st.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i := range blob.Sessions {
		if blob.Sessions[i].ID == id {
			blob.Sessions[i].UpdatedAt = updatedAt
		}
	}
	if err := st.Save(blob); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestPruneRemovesStaleTemporary(t *testing.T) {
	p, st := newTestPruner(t)
	now := time.Now()

	saveSession(t, st, "stale", now.Add(-8*24*time.Hour), false)
	saveSession(t, st, "fresh", now.Add(-time.Hour), false)

	result, err := p.Prune(now, false)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Removed) != 1 || result.Removed[0] != "stale" {
		t.Errorf("removed = %v, want [stale]", result.Removed)
	}
	if result.Kept != 1 {
		t.Errorf("kept = %d, want 1", result.Kept)
	}

	if _, err := st.GetSession("stale"); err == nil {
		t.Error("stale session still present after prune")
	}
	if _, err := st.GetSession("fresh"); err != nil {
		t.Errorf("fresh session removed: %v", err)
	}
}

func TestPruneKeepsBookmarkedSessions(t *testing.T) {
	p, st := newTestPruner(t)
	now := time.Now()

	// Old, but a bookmark makes it critical.
	saveSession(t, st, "keeper", now.Add(-90*24*time.Hour), true)

	result, err := p.Prune(now, false)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Removed) != 0 {
		t.Errorf("removed = %v, want none", result.Removed)
	}
	if result.Kept != 1 {
		t.Errorf("kept = %d, want 1", result.Kept)
	}
	if _, err := st.GetSession("keeper"); err != nil {
		t.Errorf("bookmarked session removed: %v", err)
	}
}

func TestPruneDryRun(t *testing.T) {
	p, st := newTestPruner(t)
	now := time.Now()

	saveSession(t, st, "stale", now.Add(-30*24*time.Hour), false)

	result, err := p.Prune(now, true)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Removed) != 1 || result.Removed[0] != "stale" {
		t.Errorf("dry run should report the candidate: removed = %v", result.Removed)
	}
	if _, err := st.GetSession("stale"); err != nil {
		t.Errorf("dry run deleted the session: %v", err)
	}
}

func TestPruneEmptyStore(t *testing.T) {
	p, _ := newTestPruner(t)
	result, err := p.Prune(time.Now(), false)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Removed) != 0 || result.Kept != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}
