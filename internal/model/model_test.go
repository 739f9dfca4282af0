package model

import (
	"strings"
	"testing"
	"time"
)

func TestSession_Validate(t *testing.T) {
	now := time.Now()

	valid := func() Session {
		return Session{
			ID:        "sess-1",
			Title:     "Go Basics",
			Status:    StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Session)
		wantErr string
	}{
		{
			name:   "valid session",
			mutate: func(s *Session) {},
		},
		{
			name:    "missing id",
			mutate:  func(s *Session) { s.ID = "" },
			wantErr: "id is required",
		},
		{
			name:    "missing title",
			mutate:  func(s *Session) { s.Title = "" },
			wantErr: "title is required",
		},
		{
			name:    "title too long",
			mutate:  func(s *Session) { s.Title = strings.Repeat("x", 501) },
			wantErr: "title must be 500 characters or less",
		},
		{
			name:    "invalid status",
			mutate:  func(s *Session) { s.Status = "archived" },
			wantErr: "invalid status",
		},
		{
			name:    "missing created_at",
			mutate:  func(s *Session) { s.CreatedAt = time.Time{} },
			wantErr: "created_at is required",
		},
		{
			name:    "missing updated_at",
			mutate:  func(s *Session) { s.UpdatedAt = time.Time{} },
			wantErr: "updated_at is required",
		},
		{
			name: "invalid embedded message",
			mutate: func(s *Session) {
				s.Messages = []Message{{ID: "m1", SessionID: "sess-1", Role: "oracle", Content: "hi", CreatedAt: now}}
			},
			wantErr: "message 0",
		},
		{
			name: "invalid embedded card",
			mutate: func(s *Session) {
				s.Cards = []Card{{ID: "c1", SessionID: "sess-1", Title: "t", Content: "b", Type: "poster", Difficulty: 3, CreatedAt: now}}
			},
			wantErr: "card 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := valid()
			tt.mutate(&sess)
			err := sess.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSession_SetDefaults(t *testing.T) {
	var sess Session
	sess.SetDefaults()

	if sess.ID == "" {
		t.Error("SetDefaults() did not assign an id")
	}
	if sess.Status != StatusDraft {
		t.Errorf("SetDefaults() status = %q, want %q", sess.Status, StatusDraft)
	}
	if sess.CreatedAt.IsZero() || sess.UpdatedAt.IsZero() {
		t.Error("SetDefaults() did not stamp timestamps")
	}
}

func TestSession_HasBookmarks(t *testing.T) {
	tests := []struct {
		name string
		sess Session
		want bool
	}{
		{
			name: "empty session",
			sess: Session{},
			want: false,
		},
		{
			name: "plain messages only",
			sess: Session{Messages: []Message{{ID: "m1"}, {ID: "m2"}}},
			want: false,
		},
		{
			name: "bookmarked message",
			sess: Session{Messages: []Message{{ID: "m1", Bookmarked: true}}},
			want: true,
		},
		{
			name: "message promoted to card",
			sess: Session{Messages: []Message{{ID: "m1", CardID: "c1"}}},
			want: true,
		},
		{
			name: "card without bookmarked message",
			sess: Session{Cards: []Card{{ID: "c1"}}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sess.HasBookmarks(); got != tt.want {
				t.Errorf("HasBookmarks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSession_FindChapter(t *testing.T) {
	sess := Session{
		Outline: []Chapter{
			{ID: "ch1", Title: "Basics", Sections: []Chapter{
				{ID: "ch1.1", Title: "Variables"},
				{ID: "ch1.2", Title: "Functions"},
			}},
			{ID: "ch2", Title: "Concurrency"},
		},
	}

	if ch := sess.FindChapter("ch1.2"); ch == nil || ch.Title != "Functions" {
		t.Errorf("FindChapter(ch1.2) = %+v, want Functions", ch)
	}
	if ch := sess.FindChapter("ch2"); ch == nil || ch.Title != "Concurrency" {
		t.Errorf("FindChapter(ch2) = %+v, want Concurrency", ch)
	}
	if ch := sess.FindChapter("missing"); ch != nil {
		t.Errorf("FindChapter(missing) = %+v, want nil", ch)
	}
}

func TestCard_Validate_DifficultyBounds(t *testing.T) {
	now := time.Now()
	card := Card{
		ID: "c1", SessionID: "s1", Title: "t", Content: "b",
		Type: CardInsight, CreatedAt: now,
	}

	for _, d := range []float64{1.0, 3.0, 5.0} {
		card.Difficulty = d
		if err := card.Validate(); err != nil {
			t.Errorf("Validate() with difficulty %g: unexpected error %v", d, err)
		}
	}
	for _, d := range []float64{0.5, 5.1, -1} {
		card.Difficulty = d
		if err := card.Validate(); err == nil {
			t.Errorf("Validate() with difficulty %g: expected error", d)
		}
	}
}

func TestCard_Due(t *testing.T) {
	now := time.Now()
	card := Card{NextReviewAt: now.Add(time.Hour)}
	if card.Due(now) {
		t.Error("card due an hour early")
	}
	if !card.Due(now.Add(time.Hour)) {
		t.Error("card not due at its review time")
	}
	if !card.Due(now.Add(2 * time.Hour)) {
		t.Error("card not due past its review time")
	}
}

func TestNormalizeTime(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	in := time.Date(2025, 6, 1, 12, 30, 45, 123456789, loc)
	out := NormalizeTime(in)

	if out.Location() != time.UTC {
		t.Errorf("NormalizeTime() location = %v, want UTC", out.Location())
	}
	if out.Nanosecond()%int(time.Millisecond) != 0 {
		t.Errorf("NormalizeTime() kept sub-millisecond precision: %d", out.Nanosecond())
	}
	if !out.Equal(in.Truncate(time.Millisecond)) {
		t.Errorf("NormalizeTime() changed the instant: %v vs %v", out, in)
	}
}
