package model

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of a study session.
type SessionStatus string

const (
	StatusDraft     SessionStatus = "draft"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusPaused    SessionStatus = "paused"
)

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s SessionStatus) bool {
	switch s {
	case StatusDraft, StatusActive, StatusCompleted, StatusPaused:
		return true
	}
	return false
}

// Chapter is one node of a session's outline tree. Sections nest one level
// deep in practice but the structure is recursive to keep parsing simple.
type Chapter struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Sections []Chapter `json:"sections,omitempty"`
}

// Session represents one document-driven study session.
//
// The id is caller-assigned and stable across local and remote stores.
// UpdatedAt is the last-write-wins conflict stamp: every mutation through
// the store refreshes it.
type Session struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	// DocumentContent is the raw text extracted from the uploaded material.
	DocumentContent string `json:"document_content,omitempty"`
	DocumentType    string `json:"document_type,omitempty"`
	LearningLevel   string `json:"learning_level,omitempty"`

	Outline        []Chapter `json:"outline,omitempty"`
	CurrentChapter string    `json:"current_chapter,omitempty"`

	Status SessionStatus `json:"status"`

	Messages []Message `json:"messages,omitempty"`
	Cards    []Card    `json:"cards,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the session has valid field values.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(s.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(s.Title))
	}
	if !ValidStatus(s.Status) {
		return fmt.Errorf("invalid status %q", s.Status)
	}
	if s.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if s.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	for i := range s.Messages {
		if err := s.Messages[i].Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	for i := range s.Cards {
		if err := s.Cards[i].Validate(); err != nil {
			return fmt.Errorf("card %d: %w", i, err)
		}
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (s *Session) SetDefaults() {
	if s.ID == "" {
		s.ID = NewID()
	}
	if s.Status == "" {
		s.Status = StatusDraft
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
}

// Touch sets UpdatedAt to the current time. Call on every mutation.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// HasBookmarks reports whether any message or card in the session represents
// user-curated effort. Used by the classifier to decide sync criticality.
func (s *Session) HasBookmarks() bool {
	for i := range s.Messages {
		if s.Messages[i].Bookmarked || s.Messages[i].CardID != "" {
			return true
		}
	}
	return len(s.Cards) > 0
}

// FindChapter walks the outline for the chapter with the given id.
// Returns nil if not found.
func (s *Session) FindChapter(id string) *Chapter {
	return findChapter(s.Outline, id)
}

func findChapter(chapters []Chapter, id string) *Chapter {
	for i := range chapters {
		if chapters[i].ID == id {
			return &chapters[i]
		}
		if c := findChapter(chapters[i].Sections, id); c != nil {
			return c
		}
	}
	return nil
}
