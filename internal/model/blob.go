package model

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current version tag of the local store blob.
// Loading a blob with a different version triggers a one-shot migration.
const SchemaVersion = "2"

// UserPreferences holds per-user settings carried inside the store blob.
// Fields are fixed and enumerated; unknown JSON keys are dropped on load.
type UserPreferences struct {
	Theme            string `json:"theme,omitempty"`
	LearningLevel    string `json:"learning_level,omitempty"`
	DailyReviewGoal  int    `json:"daily_review_goal,omitempty"`
	ReminderEnabled  bool   `json:"reminder_enabled,omitempty"`
	StalenessWindowH int    `json:"staleness_window_hours,omitempty"`
}

// ProviderConfig selects and configures a language-model endpoint.
// The provider variant is resolved once at configuration time, never by
// string dispatch at call sites.
type ProviderConfig struct {
	Provider    string  `json:"provider"` // anthropic, openai-compatible
	BaseURL     string  `json:"base_url,omitempty"`
	APIKey      string  `json:"api_key,omitempty"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// StoreBlob is the single versioned container persisted by the local store.
// Every save is a full blob rewrite; there is no partial-write atomicity
// beyond "the whole blob replaced or not at all".
type StoreBlob struct {
	Version     string          `json:"version"`
	Sessions    []Session       `json:"sessions"`
	Preferences UserPreferences `json:"preferences"`
	APIConfig   *ProviderConfig `json:"apiConfig,omitempty"`
}

// EmptyBlob returns a default blob at the current schema version.
// Used when the backing storage is missing or unreadable.
func EmptyBlob() *StoreBlob {
	return &StoreBlob{
		Version:  SchemaVersion,
		Sessions: []Session{},
	}
}

// FindSession returns a pointer to the session with the given id, or nil.
func (b *StoreBlob) FindSession(id string) *Session {
	for i := range b.Sessions {
		if b.Sessions[i].ID == id {
			return &b.Sessions[i]
		}
	}
	return nil
}

// NewID returns a fresh record id. IDs are caller-assigned at the UI
// boundary in production; this is the fallback for records created without
// one.
func NewID() string {
	return uuid.NewString()
}

// NormalizeTime converts a timestamp to canonical UTC, truncated to
// millisecond precision so local and remote representations round-trip.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
