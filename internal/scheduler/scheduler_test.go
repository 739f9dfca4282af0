package scheduler

import (
	"math"
	"testing"
	"time"

	"github.com/tutorkit/tutorkit/internal/model"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDifficultyFactor(t *testing.T) {
	tests := []struct {
		difficulty float64
		want       float64
	}{
		{1.0, 2.5},
		{2.0, 2.2},
		{3.0, 1.9},
		{4.0, 1.6},
		{5.0, 1.3},
	}
	for _, tt := range tests {
		if got := DifficultyFactor(tt.difficulty); !almostEqual(got, tt.want) {
			t.Errorf("DifficultyFactor(%g) = %g, want %g", tt.difficulty, got, tt.want)
		}
	}
}

func TestSchedule_GoodRecall(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	card := model.Card{
		ID: "c1", SessionID: "s1", Title: "t", Content: "b",
		Type: model.CardInsight, Difficulty: 3.0, CreatedAt: now,
	}

	got, err := Schedule(card, 4, now)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}

	// First interval scaled by the pre-drift factor: 24h * 1.9.
	wantNext := model.NormalizeTime(now.Add(time.Duration(float64(24*time.Hour) * 1.9)))
	if !got.NextReviewAt.Equal(wantNext) {
		t.Errorf("NextReviewAt = %v, want %v", got.NextReviewAt, wantNext)
	}
	if !almostEqual(got.Difficulty, 2.9) {
		t.Errorf("Difficulty = %g, want 2.9", got.Difficulty)
	}
	if got.ReviewCount != 1 {
		t.Errorf("ReviewCount = %d, want 1", got.ReviewCount)
	}
	if got.LastReviewedAt == nil || !got.LastReviewedAt.Equal(now) {
		t.Errorf("LastReviewedAt = %v, want %v", got.LastReviewedAt, now)
	}
}

func TestSchedule_Lapse(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	card := model.Card{
		ID: "c1", SessionID: "s1", Title: "t", Content: "b",
		Type: model.CardInsight, Difficulty: 2.0, ReviewCount: 3, CreatedAt: now,
	}

	got, err := Schedule(card, 2, now)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}

	if !almostEqual(got.Difficulty, 3.0) {
		t.Errorf("Difficulty = %g, want 3.0", got.Difficulty)
	}
	// Back to the first interval, scaled by the new difficulty's factor.
	wantNext := model.NormalizeTime(now.Add(time.Duration(float64(24*time.Hour) * 1.9)))
	if !got.NextReviewAt.Equal(wantNext) {
		t.Errorf("NextReviewAt = %v, want %v", got.NextReviewAt, wantNext)
	}
	if got.ReviewCount != 4 {
		t.Errorf("ReviewCount = %d, want 4", got.ReviewCount)
	}
}

func TestSchedule_IntervalTableClamped(t *testing.T) {
	now := time.Now()
	card := model.Card{Difficulty: 3.0, ReviewCount: 50}

	got, err := Schedule(card, 5, now)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}

	last := BaseIntervals[len(BaseIntervals)-1]
	wantNext := model.NormalizeTime(now.Add(time.Duration(float64(last) * 1.9)))
	if !got.NextReviewAt.Equal(wantNext) {
		t.Errorf("NextReviewAt = %v, want %v (last base interval)", got.NextReviewAt, wantNext)
	}
}

func TestSchedule_DifficultyClamped(t *testing.T) {
	now := time.Now()

	easy, err := Schedule(model.Card{Difficulty: 1.0}, 5, now)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if easy.Difficulty != model.MinDifficulty {
		t.Errorf("easing at the floor: Difficulty = %g, want %g", easy.Difficulty, model.MinDifficulty)
	}

	hard, err := Schedule(model.Card{Difficulty: 4.5}, 1, now)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if hard.Difficulty != model.MaxDifficulty {
		t.Errorf("lapsing at the ceiling: Difficulty = %g, want %g", hard.Difficulty, model.MaxDifficulty)
	}
}

func TestSchedule_InvalidQuality(t *testing.T) {
	now := time.Now()
	for _, q := range []int{0, -1, 6} {
		if _, err := Schedule(model.Card{Difficulty: 3.0}, q, now); err == nil {
			t.Errorf("Schedule() with quality %d: expected error", q)
		}
	}
}

func TestSchedule_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	card := model.Card{Difficulty: 2.5, ReviewCount: 2}

	a, err := Schedule(card, 3, now)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	b, err := Schedule(card, 3, now)
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}

	if !a.NextReviewAt.Equal(b.NextReviewAt) || a.Difficulty != b.Difficulty || a.ReviewCount != b.ReviewCount {
		t.Errorf("Schedule() is not deterministic: %+v vs %+v", a, b)
	}
	if card.ReviewCount != 2 || card.LastReviewedAt != nil {
		t.Errorf("Schedule() mutated its input: %+v", card)
	}
}

func TestSchedule_IntervalsGrowWithReviewCount(t *testing.T) {
	now := time.Now()
	var prev time.Duration
	for rc := 0; rc < len(BaseIntervals); rc++ {
		got, err := Schedule(model.Card{Difficulty: 3.0, ReviewCount: rc}, 4, now)
		if err != nil {
			t.Fatalf("Schedule() error: %v", err)
		}
		interval := got.NextReviewAt.Sub(model.NormalizeTime(now))
		if interval <= prev {
			t.Errorf("interval at review %d (%v) did not grow past %v", rc, interval, prev)
		}
		prev = interval
	}
}

func TestPrime(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	fresh := model.Card{}
	Prime(&fresh, now)
	want := model.NormalizeTime(now.Add(InitialDelay))
	if !fresh.NextReviewAt.Equal(want) {
		t.Errorf("Prime() NextReviewAt = %v, want %v", fresh.NextReviewAt, want)
	}

	reviewed := model.Card{ReviewCount: 2, NextReviewAt: now.Add(72 * time.Hour)}
	Prime(&reviewed, now)
	if !reviewed.NextReviewAt.Equal(now.Add(72 * time.Hour)) {
		t.Error("Prime() overwrote a reviewed card's schedule")
	}
}
