package model

import (
	"fmt"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ValidRole reports whether r is a known message role.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one turn of a session's chat transcript.
//
// Messages are immutable once created except for the bookmark flag and the
// card back-reference, both set when the user promotes the message to a
// flashcard.
type Message struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`

	// ChapterID associates the message with an outline chapter, when known.
	ChapterID string `json:"chapter_id,omitempty"`

	Bookmarked bool `json:"is_bookmarked,omitempty"`

	// CardID back-references the flashcard this message was promoted into.
	CardID string `json:"card_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that the message has valid field values.
func (m *Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if !ValidRole(m.Role) {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("content is required")
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (m *Message) SetDefaults() {
	if m.ID == "" {
		m.ID = NewID()
	}
	if m.Role == "" {
		m.Role = RoleUser
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
}
