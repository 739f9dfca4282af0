package store

import (
	"time"

	"github.com/tutorkit/tutorkit/internal/model"
)

// migrate upgrades a blob from an older schema version in place.
//
// Migration is defensive: unknown or missing fields get defaults, nothing
// throws. Version "1" blobs predate session lifecycle status and card
// difficulty bounds; anything older (or unrecognized) gets the same
// normalization pass, which is idempotent.
func migrate(blob *model.StoreBlob) {
	now := time.Now().UTC()

	for i := range blob.Sessions {
		sess := &blob.Sessions[i]
		if sess.Status == "" || !model.ValidStatus(sess.Status) {
			sess.Status = model.StatusActive
		}
		if sess.CreatedAt.IsZero() {
			sess.CreatedAt = now
		}
		if sess.UpdatedAt.IsZero() {
			sess.UpdatedAt = sess.CreatedAt
		}

		for j := range sess.Messages {
			msg := &sess.Messages[j]
			if msg.SessionID == "" {
				msg.SessionID = sess.ID
			}
			if !model.ValidRole(msg.Role) {
				msg.Role = model.RoleUser
			}
			if msg.CreatedAt.IsZero() {
				msg.CreatedAt = sess.CreatedAt
			}
		}

		for j := range sess.Cards {
			card := &sess.Cards[j]
			if card.SessionID == "" {
				card.SessionID = sess.ID
			}
			if !model.ValidCardType(card.Type) {
				card.Type = model.CardInsight
			}
			if card.Difficulty < model.MinDifficulty {
				card.Difficulty = 3.0
			}
			if card.Difficulty > model.MaxDifficulty {
				card.Difficulty = model.MaxDifficulty
			}
			if card.ReviewCount < 0 {
				card.ReviewCount = 0
			}
			if card.CreatedAt.IsZero() {
				card.CreatedAt = sess.CreatedAt
			}
			if card.NextReviewAt.IsZero() {
				card.NextReviewAt = now
			}
		}
	}

	if blob.Sessions == nil {
		blob.Sessions = []model.Session{}
	}
	blob.Version = model.SchemaVersion
}
