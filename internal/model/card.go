package model

import (
	"fmt"
	"time"
)

// CardType distinguishes how a flashcard was captured.
type CardType string

const (
	// CardInsight marks a card captured spontaneously mid-conversation.
	CardInsight CardType = "insight"
	// CardBookmark marks a card created by deliberately bookmarking a message.
	CardBookmark CardType = "bookmark"
)

// ValidCardType reports whether t is a known card type.
func ValidCardType(t CardType) bool {
	return t == CardInsight || t == CardBookmark
}

// Difficulty bounds for cards. The review scheduler clamps drift to this range.
const (
	MinDifficulty = 1.0
	MaxDifficulty = 5.0
)

// Card is a flashcard promoted from a chat excerpt.
//
// NextReviewAt is always derived by the review scheduler from the previous
// review outcome. Callers must never set it directly.
type Card struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id,omitempty"`

	Title    string   `json:"title"`
	Content  string   `json:"content"`
	UserNote string   `json:"user_note,omitempty"`
	Type     CardType `json:"type"`
	Tags     []string `json:"tags,omitempty"`

	// Difficulty is a bounded factor in [1,5]; higher means harder, and
	// harder cards come back sooner.
	Difficulty float64 `json:"difficulty"`

	ReviewCount    int        `json:"review_count"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	NextReviewAt   time.Time  `json:"next_review_at"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that the card has valid field values.
func (c *Card) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if c.Title == "" {
		return fmt.Errorf("title is required")
	}
	if c.Content == "" {
		return fmt.Errorf("content is required")
	}
	if !ValidCardType(c.Type) {
		return fmt.Errorf("invalid card type %q", c.Type)
	}
	if c.Difficulty < MinDifficulty || c.Difficulty > MaxDifficulty {
		return fmt.Errorf("difficulty must be between %g and %g (got %g)", MinDifficulty, MaxDifficulty, c.Difficulty)
	}
	if c.ReviewCount < 0 {
		return fmt.Errorf("review_count must not be negative")
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
// NextReviewAt is left to the review scheduler.
func (c *Card) SetDefaults() {
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.Type == "" {
		c.Type = CardInsight
	}
	if c.Difficulty == 0 {
		c.Difficulty = 3.0
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
}

// Due reports whether the card is due for review at the given time.
func (c *Card) Due(now time.Time) bool {
	return !c.NextReviewAt.After(now)
}
