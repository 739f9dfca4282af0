// Package scheduler computes flashcard review timing on a forgetting-curve
// schedule.
//
// The scheduler is a pure function of (card, quality, now): given the same
// inputs it reproduces the same output bit for bit. It never touches storage
// or the network.
package scheduler

import (
	"fmt"
	"time"

	"github.com/tutorkit/tutorkit/internal/model"
)

// BaseIntervals is the ordered table of review intervals indexed by the
// card's prior review count. The first review comes back quickly; each
// subsequent review stretches further out.
var BaseIntervals = []time.Duration{
	24 * time.Hour,       // 1 day
	3 * 24 * time.Hour,   // 3 days
	7 * 24 * time.Hour,   // 1 week
	14 * 24 * time.Hour,  // 2 weeks
	30 * 24 * time.Hour,  // 1 month
	60 * 24 * time.Hour,  // 2 months
	120 * 24 * time.Hour, // 4 months
}

// InitialDelay is the delay before a freshly created card first comes due.
const InitialDelay = 10 * time.Minute

// Difficulty drift per review outcome. Good recall nudges the card easier;
// a lapse jumps it a full step harder.
const (
	easeStep  = 0.1
	lapseStep = 1.0
)

// PassingQuality is the lowest recall score that counts as successful.
// Anything below it is a lapse and resets the card to the first interval.
const PassingQuality = 3

// DifficultyFactor scales a base interval for a card's difficulty:
// 2.5 at difficulty 1, shrinking by 0.3 per step, so harder cards come
// back sooner.
func DifficultyFactor(difficulty float64) float64 {
	return 2.5 - (difficulty-1)*0.3
}

// Prime stamps a new card's NextReviewAt with the initial delay.
// Only cards with ReviewCount == 0 are primed; reviewed cards keep their
// scheduler-derived timestamp.
func Prime(card *model.Card, now time.Time) {
	if card.ReviewCount == 0 && card.NextReviewAt.IsZero() {
		card.NextReviewAt = model.NormalizeTime(now.Add(InitialDelay))
	}
}

// Schedule applies one review outcome to a card and returns the updated
// copy. The input card is not modified.
//
// quality is the learner's recall score from 1 (blackout) to 5 (perfect).
// Good recall (quality >= 3) selects the base interval for the prior review
// count, scaled by the difficulty factor of the card's difficulty before
// drift, then eases the card slightly. A lapse (quality < 3) bumps the
// difficulty a full step harder and resets to the first base interval,
// scaled by the new difficulty factor.
func Schedule(card model.Card, quality int, now time.Time) (model.Card, error) {
	if quality < 1 || quality > 5 {
		return card, fmt.Errorf("quality must be between 1 and 5 (got %d)", quality)
	}

	var interval time.Duration
	if quality < PassingQuality {
		card.Difficulty = clamp(card.Difficulty + lapseStep)
		interval = scale(BaseIntervals[0], DifficultyFactor(card.Difficulty))
	} else {
		idx := card.ReviewCount
		if idx > len(BaseIntervals)-1 {
			idx = len(BaseIntervals) - 1
		}
		interval = scale(BaseIntervals[idx], DifficultyFactor(card.Difficulty))
		card.Difficulty = clamp(card.Difficulty - easeStep)
	}

	card.ReviewCount++
	reviewed := model.NormalizeTime(now)
	card.LastReviewedAt = &reviewed
	card.NextReviewAt = model.NormalizeTime(now.Add(interval))
	return card, nil
}

func scale(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}

func clamp(d float64) float64 {
	if d < model.MinDifficulty {
		return model.MinDifficulty
	}
	if d > model.MaxDifficulty {
		return model.MaxDifficulty
	}
	return d
}
