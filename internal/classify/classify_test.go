package classify

import (
	"testing"
	"time"

	"github.com/tutorkit/tutorkit/internal/model"
)

func TestClassifier_Session(t *testing.T) {
	c := New(0)

	tests := []struct {
		name string
		sess model.Session
		want Label
	}{
		{
			name: "empty session is temporary",
			sess: model.Session{ID: "s1"},
			want: Temporary,
		},
		{
			name: "chat-only session is temporary",
			sess: model.Session{ID: "s1", Messages: []model.Message{
				{ID: "m1", Content: "what is a goroutine"},
				{ID: "m2", Content: "a lightweight thread"},
			}},
			want: Temporary,
		},
		{
			name: "one bookmarked message makes it critical",
			sess: model.Session{ID: "s1", Messages: []model.Message{
				{ID: "m1"},
				{ID: "m2", Bookmarked: true},
			}},
			want: Critical,
		},
		{
			name: "card back-reference makes it critical",
			sess: model.Session{ID: "s1", Messages: []model.Message{
				{ID: "m1", CardID: "c1"},
			}},
			want: Critical,
		},
		{
			name: "embedded card makes it critical",
			sess: model.Session{ID: "s1", Cards: []model.Card{{ID: "c1"}}},
			want: Critical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Session(&tt.sess); got != tt.want {
				t.Errorf("Session() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifier_CardAlwaysCritical(t *testing.T) {
	c := New(0)
	if got := c.Card(&model.Card{}); got != Critical {
		t.Errorf("Card() = %v, want %v", got, Critical)
	}
}

func TestClassifier_Message(t *testing.T) {
	c := New(0)

	if got := c.Message(&model.Message{ID: "m1"}); got != Temporary {
		t.Errorf("plain message = %v, want %v", got, Temporary)
	}
	if got := c.Message(&model.Message{ID: "m1", Bookmarked: true}); got != Critical {
		t.Errorf("bookmarked message = %v, want %v", got, Critical)
	}
	if got := c.Message(&model.Message{ID: "m1", CardID: "c1"}); got != Critical {
		t.Errorf("promoted message = %v, want %v", got, Critical)
	}
}

func TestClassifier_CleanupEligible(t *testing.T) {
	now := time.Now()
	c := New(7 * 24 * time.Hour)

	tests := []struct {
		name string
		sess model.Session
		want bool
	}{
		{
			name: "stale temporary session is eligible",
			sess: model.Session{ID: "s1", UpdatedAt: now.Add(-8 * 24 * time.Hour)},
			want: true,
		},
		{
			name: "fresh temporary session is not eligible",
			sess: model.Session{ID: "s1", UpdatedAt: now.Add(-time.Hour)},
			want: false,
		},
		{
			name: "exactly at the window boundary is not eligible",
			sess: model.Session{ID: "s1", UpdatedAt: now.Add(-7 * 24 * time.Hour)},
			want: false,
		},
		{
			name: "stale but bookmarked session is never eligible",
			sess: model.Session{
				ID:        "s1",
				UpdatedAt: now.Add(-365 * 24 * time.Hour),
				Messages:  []model.Message{{ID: "m1", Bookmarked: true}},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.CleanupEligible(&tt.sess, now); got != tt.want {
				t.Errorf("CleanupEligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_DefaultWindow(t *testing.T) {
	if got := New(0).StalenessWindow(); got != DefaultStalenessWindow {
		t.Errorf("New(0) window = %v, want %v", got, DefaultStalenessWindow)
	}
	if got := New(time.Hour).StalenessWindow(); got != time.Hour {
		t.Errorf("New(1h) window = %v, want 1h", got)
	}
}
