// Package cleanup implements pruning of temporary study sessions.
//
// A session is eligible for removal when the classifier labels it temporary
// (no bookmarked messages or cards) and it has not been updated within the
// staleness window. Critical sessions are never touched.
package cleanup

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tutorkit/tutorkit/internal/classify"
	"github.com/tutorkit/tutorkit/internal/store"
)

// Result reports what a cleanup pass removed.
type Result struct {
	Removed []string // session ids
	Kept    int
}

// Pruner removes stale temporary sessions from the local store.
type Pruner struct {
	store      *store.Store
	classifier *classify.Classifier
	logger     *log.Logger
}

// New creates a Pruner. If logger is nil, a default stderr logger is used.
func New(st *store.Store, cl *classify.Classifier, logger *log.Logger) *Pruner {
	if logger == nil {
		logger = log.New(os.Stderr, "[cleanup] ", log.LstdFlags)
	}
	if cl == nil {
		cl = classify.New(0)
	}
	return &Pruner{store: st, classifier: cl, logger: logger}
}

// Prune removes every cleanup-eligible session as of now.
// If dryRun is true nothing is deleted; the result lists what would go.
func (p *Pruner) Prune(now time.Time, dryRun bool) (Result, error) {
	sessions, err := p.store.ListSessions()
	if err != nil {
		return Result{}, fmt.Errorf("failed to list sessions: %w", err)
	}

	var result Result
	for i := range sessions {
		sess := &sessions[i]
		if !p.classifier.CleanupEligible(sess, now) {
			result.Kept++
			continue
		}
		if !dryRun {
			if err := p.store.DeleteSession(sess.ID); err != nil {
				return result, fmt.Errorf("failed to delete session %s: %w", sess.ID, err)
			}
		}
		p.logger.Printf("Pruned stale session %s (%s), last updated %s",
			sess.ID, sess.Title, sess.UpdatedAt.Format(time.RFC3339))
		result.Removed = append(result.Removed, sess.ID)
	}
	return result, nil
}
