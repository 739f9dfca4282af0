// Package classify labels records as critical or temporary.
//
// Critical records must eventually reach the remote store; temporary records
// stay local and are subject to the cleanup policy. The classification is
// pure so it can be tested independent of storage:
//
//   - Cards are always critical. They represent irreversible user curation.
//   - A session is critical when it references any bookmarked message or
//     card; otherwise it is temporary.
//   - A message is temporary unless it has been bookmarked into a card.
//
// Temporary sessions are only eligible for cleanup once their UpdatedAt
// falls outside the staleness window; a fresh unbookmarked session is
// temporary (not synced) but never garbage-collected.
package classify

import (
	"time"

	"github.com/tutorkit/tutorkit/internal/model"
)

// Label is the classification outcome for a record.
type Label string

const (
	Critical  Label = "critical"
	Temporary Label = "temporary"
)

// DefaultStalenessWindow is how long an unbookmarked, unmodified session
// survives before becoming eligible for cleanup.
const DefaultStalenessWindow = 7 * 24 * time.Hour

// Classifier applies the labeling rules. The zero value is not usable;
// construct with New.
type Classifier struct {
	stalenessWindow time.Duration
}

// New returns a Classifier with the given staleness window.
// A non-positive window falls back to the default.
func New(stalenessWindow time.Duration) *Classifier {
	if stalenessWindow <= 0 {
		stalenessWindow = DefaultStalenessWindow
	}
	return &Classifier{stalenessWindow: stalenessWindow}
}

// Card always returns Critical.
func (c *Classifier) Card(_ *model.Card) Label {
	return Critical
}

// Session returns Critical when the session references any bookmark.
func (c *Classifier) Session(sess *model.Session) Label {
	if sess.HasBookmarks() {
		return Critical
	}
	return Temporary
}

// Message returns Critical only for messages bookmarked into a card.
func (c *Classifier) Message(msg *model.Message) Label {
	if msg.Bookmarked || msg.CardID != "" {
		return Critical
	}
	return Temporary
}

// CleanupEligible reports whether a session may be garbage-collected at the
// given time: it must be temporary and stale.
func (c *Classifier) CleanupEligible(sess *model.Session, now time.Time) bool {
	if c.Session(sess) == Critical {
		return false
	}
	return now.Sub(sess.UpdatedAt) > c.stalenessWindow
}

// StalenessWindow returns the configured window.
func (c *Classifier) StalenessWindow() time.Duration {
	return c.stalenessWindow
}
