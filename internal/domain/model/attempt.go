// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// Uncategorized groups attempts that carry no category tag.
const Uncategorized = "uncategorized"

// Attempt is one completed quiz or review session. Attempts are created once
// and never mutated afterwards.
type Attempt struct {
	ID        string    // idempotency key
	UserID    string    // owner of the attempt
	SubjectID string    // quiz, subject or card the attempt belongs to
	Category  string    // optional tag on quiz-type attempts
	Score     int       // number of correct answers
	Total     int       // number of questions/items
	Answers   []bool    // per-question outcomes, len == Total when present
	TS        time.Time // completion time
}

// Validate reports why an attempt cannot be aggregated, or nil.
func (a *Attempt) Validate() error {
	switch {
	case a.Total <= 0:
		return fmt.Errorf("%w: total=%d", ErrZeroTotal, a.Total)
	case a.Score < 0:
		return fmt.Errorf("%w: score=%d", ErrNegativeScore, a.Score)
	case a.Score > a.Total:
		return fmt.Errorf("%w: score=%d total=%d", ErrScoreExceedsTotal, a.Score, a.Total)
	case a.TS.IsZero():
		return ErrMissingTimestamp
	case len(a.Answers) > 0 && len(a.Answers) != a.Total:
		return fmt.Errorf("%w: answers=%d total=%d", ErrAnswersMismatch, len(a.Answers), a.Total)
	}
	return nil
}

// Valid is shorthand for Validate() == nil.
func (a *Attempt) Valid() bool { return a.Validate() == nil }

// Ratio returns score/total. ok is false for attempts that fail validation.
func (a *Attempt) Ratio() (ratio float64, ok bool) {
	if !a.Valid() {
		return 0, false
	}
	return float64(a.Score) / float64(a.Total), true
}

// CategoryOrDefault returns the category tag, or Uncategorized when empty.
func (a *Attempt) CategoryOrDefault() string {
	if a.Category == "" {
		return Uncategorized
	}
	return a.Category
}

// CorrectAnswers counts the correct per-question outcomes.
func (a *Attempt) CorrectAnswers() int {
	n := 0
	for _, ok := range a.Answers {
		if ok {
			n++
		}
	}
	return n
}
