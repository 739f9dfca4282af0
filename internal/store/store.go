package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/tutorkit/tutorkit/internal/model"
)

// blobKey is the storage key for the main versioned blob. The offline queue
// persists under its own key (see internal/queue) so a corrupt main blob
// never takes down pending-sync bookkeeping.
const blobKey = "store"

// Store is the local persistence layer over a Storage backend.
//
// Every mutating method is a full read-modify-write cycle: load the latest
// blob, apply the change, rewrite the whole blob. The mutex serializes
// writers within the process; the re-read keeps interleaved writers from
// carrying a stale copy across suspension points.
type Store struct {
	storage Storage
	logger  *log.Logger
	mu      sync.Mutex
}

// New creates a Store over the given backend.
// If logger is nil, a default logger writing to stderr is used.
func New(storage Storage, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}
	return &Store{storage: storage, logger: logger}
}

// Load reads the blob from storage.
//
// A missing key returns an empty default blob. A corrupt blob is logged and
// also falls back to the default: read failures must never crash the caller.
// A version mismatch runs migration before the data is returned.
func (s *Store) Load() (*model.StoreBlob, error) {
	data, err := s.storage.Read(blobKey)
	if errors.Is(err, ErrNotFound) {
		return model.EmptyBlob(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load store blob: %w", err)
	}

	var blob model.StoreBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		s.logger.Printf("WARNING: corrupt store blob, falling back to defaults: %v", err)
		return model.EmptyBlob(), nil
	}

	if blob.Version != model.SchemaVersion {
		s.logger.Printf("Migrating store blob: %q -> %q", blob.Version, model.SchemaVersion)
		migrate(&blob)
	}
	return &blob, nil
}

// Save rewrites the whole blob. Callers must not assume partial-write
// atomicity beyond whole-blob replacement.
func (s *Store) Save(blob *model.StoreBlob) error {
	blob.Version = model.SchemaVersion
	data, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("failed to marshal store blob: %w", err)
	}
	if err := s.storage.Write(blobKey, data); err != nil {
		return fmt.Errorf("failed to save store blob: %w", err)
	}
	return nil
}

// update runs fn inside a locked read-modify-write cycle.
func (s *Store) update(fn func(blob *model.StoreBlob) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(blob); err != nil {
		return err
	}
	return s.Save(blob)
}

// GetSession returns a copy of the session with the given id.
func (s *Store) GetSession(id string) (*model.Session, error) {
	blob, err := s.Load()
	if err != nil {
		return nil, err
	}
	sess := blob.FindSession(id)
	if sess == nil {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	cp := *sess
	return &cp, nil
}

// ListSessions returns all sessions ordered by UpdatedAt descending.
func (s *Store) ListSessions() ([]model.Session, error) {
	blob, err := s.Load()
	if err != nil {
		return nil, err
	}
	sessions := make([]model.Session, len(blob.Sessions))
	copy(sessions, blob.Sessions)
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// SaveSession inserts or replaces a session and stamps its UpdatedAt.
func (s *Store) SaveSession(sess *model.Session) error {
	return s.update(func(blob *model.StoreBlob) error {
		sess.Touch()
		if existing := blob.FindSession(sess.ID); existing != nil {
			*existing = *sess
			return nil
		}
		blob.Sessions = append(blob.Sessions, *sess)
		return nil
	})
}

// DeleteSession removes a session and everything it owns.
// Deleting a missing session is not an error.
func (s *Store) DeleteSession(id string) error {
	return s.update(func(blob *model.StoreBlob) error {
		for i := range blob.Sessions {
			if blob.Sessions[i].ID == id {
				blob.Sessions = append(blob.Sessions[:i], blob.Sessions[i+1:]...)
				return nil
			}
		}
		return nil
	})
}

// AppendMessages appends messages to a session's transcript and stamps the
// session's UpdatedAt.
func (s *Store) AppendMessages(sessionID string, msgs ...model.Message) error {
	return s.update(func(blob *model.StoreBlob) error {
		sess := blob.FindSession(sessionID)
		if sess == nil {
			return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		sess.Messages = append(sess.Messages, msgs...)
		sess.Touch()
		return nil
	})
}

// SetCurrentChapter records a chapter transition on the session.
func (s *Store) SetCurrentChapter(sessionID, chapterID string) error {
	return s.update(func(blob *model.StoreBlob) error {
		sess := blob.FindSession(sessionID)
		if sess == nil {
			return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		sess.CurrentChapter = chapterID
		sess.Touch()
		return nil
	})
}

// UpsertCard inserts or replaces a card in its owning session. When the card
// was promoted from a message, the message's bookmark flag and card
// back-reference are set in the same write.
func (s *Store) UpsertCard(card *model.Card) error {
	return s.update(func(blob *model.StoreBlob) error {
		sess := blob.FindSession(card.SessionID)
		if sess == nil {
			return fmt.Errorf("session %s: %w", card.SessionID, ErrNotFound)
		}
		replaced := false
		for i := range sess.Cards {
			if sess.Cards[i].ID == card.ID {
				sess.Cards[i] = *card
				replaced = true
				break
			}
		}
		if !replaced {
			sess.Cards = append(sess.Cards, *card)
		}
		if card.MessageID != "" {
			for i := range sess.Messages {
				if sess.Messages[i].ID == card.MessageID {
					sess.Messages[i].Bookmarked = true
					sess.Messages[i].CardID = card.ID
					break
				}
			}
		}
		sess.Touch()
		return nil
	})
}

// GetCard returns a copy of a card by id, searching all sessions.
func (s *Store) GetCard(id string) (*model.Card, error) {
	blob, err := s.Load()
	if err != nil {
		return nil, err
	}
	for i := range blob.Sessions {
		for j := range blob.Sessions[i].Cards {
			if blob.Sessions[i].Cards[j].ID == id {
				cp := blob.Sessions[i].Cards[j]
				return &cp, nil
			}
		}
	}
	return nil, fmt.Errorf("card %s: %w", id, ErrNotFound)
}

// DueCards returns all cards across sessions due at or before the given
// time, ordered soonest first.
func (s *Store) DueCards(now time.Time) ([]model.Card, error) {
	blob, err := s.Load()
	if err != nil {
		return nil, err
	}
	var due []model.Card
	for i := range blob.Sessions {
		for _, c := range blob.Sessions[i].Cards {
			if c.Due(now) {
				due = append(due, c)
			}
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextReviewAt.Before(due[j].NextReviewAt)
	})
	return due, nil
}

// Preferences returns the stored user preferences.
func (s *Store) Preferences() (model.UserPreferences, error) {
	blob, err := s.Load()
	if err != nil {
		return model.UserPreferences{}, err
	}
	return blob.Preferences, nil
}

// SetPreferences replaces the stored user preferences.
func (s *Store) SetPreferences(prefs model.UserPreferences) error {
	return s.update(func(blob *model.StoreBlob) error {
		blob.Preferences = prefs
		return nil
	})
}

// APIConfig returns the stored provider configuration, or nil.
func (s *Store) APIConfig() (*model.ProviderConfig, error) {
	blob, err := s.Load()
	if err != nil {
		return nil, err
	}
	return blob.APIConfig, nil
}

// SetAPIConfig replaces the stored provider configuration.
func (s *Store) SetAPIConfig(cfg *model.ProviderConfig) error {
	return s.update(func(blob *model.StoreBlob) error {
		blob.APIConfig = cfg
		return nil
	})
}

// RawStorage exposes the backend so sibling components (the offline queue)
// can persist under their own keys in the same data directory.
func (s *Store) RawStorage() Storage {
	return s.storage
}
