package progress

import (
	"fmt"
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// Accumulator is the incremental form of Summarize. Records must be added in
// non-decreasing timestamp order; for any such sequence the final Summary
// equals Summarize over the same records. The zero value is ready to use.
type Accumulator struct {
	count    int
	skipped  int
	sumScore int
	sumRatio float64
	best     int
	last     int
	lastTS   time.Time
	streak   int
}

// NewAccumulator returns an Accumulator primed with sorted history.
func NewAccumulator(history []model.Attempt) *Accumulator {
	valid, skipped := SortValid(history)
	acc := &Accumulator{skipped: skipped}
	for i := range valid {
		_ = acc.Add(valid[i])
	}
	return acc
}

// Add folds one record. Invalid records are counted as skipped and leave the
// statistics untouched. A record older than the last folded one returns
// ErrOutOfOrder and is not applied: streak and most-recent score cannot be
// maintained incrementally in that case.
func (acc *Accumulator) Add(a model.Attempt) error { //nolint:gocritic // hugeParam: attempts are passed by value across the domain
	if !a.Valid() {
		acc.skipped++
		return nil
	}
	if acc.count > 0 && a.TS.Before(acc.lastTS) {
		return fmt.Errorf("%w: %s before %s", ErrOutOfOrder,
			a.TS.Format(time.RFC3339Nano), acc.lastTS.Format(time.RFC3339Nano))
	}

	if acc.count == 0 || a.Score > acc.best {
		acc.best = a.Score
	}
	acc.count++
	acc.sumScore += a.Score
	acc.sumRatio += float64(a.Score) / float64(a.Total)
	acc.last = a.Score
	acc.lastTS = a.TS

	if a.Score > 0 {
		acc.streak++
	} else {
		acc.streak = 0
	}
	return nil
}

// Count returns the number of valid records folded so far.
func (acc *Accumulator) Count() int { return acc.count }

// Summary materializes the current state.
func (acc *Accumulator) Summary() Summary {
	s := Summary{
		Count:   acc.count,
		Skipped: acc.skipped,
		Streak:  acc.streak,
	}
	if acc.count == 0 {
		return s
	}

	avg := float64(acc.sumScore) / float64(acc.count)
	pct := acc.sumRatio / float64(acc.count) * percentScale
	best, last, ts := acc.best, acc.last, acc.lastTS

	s.AverageScore = &avg
	s.AveragePercent = &pct
	s.BestScore = &best
	s.MostRecentScore = &last
	s.LastAttemptAt = &ts
	return s
}
