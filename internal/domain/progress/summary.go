// Package progress folds attempt histories into the derived statistics shown
// on dashboards. Everything here is pure: no I/O, no shared state, and the
// results never contain NaN or Inf.
package progress

import (
	"slices"
	"time"

	"github.com/okian/tally/internal/domain/model"
)

const percentScale = 100

// Summary is derived from a subject's attempts and recomputed on demand.
// Nil pointers mean "no data" and must not be rendered as zero.
type Summary struct {
	Count           int        `json:"count"`
	Skipped         int        `json:"skipped"`
	AverageScore    *float64   `json:"average_score"`
	AveragePercent  *float64   `json:"average_percent"`
	BestScore       *int       `json:"best_score"`
	MostRecentScore *int       `json:"most_recent_score"`
	Streak          int        `json:"streak"`
	LastAttemptAt   *time.Time `json:"last_attempt_at"`
}

// Empty reports whether no valid attempt was folded.
func (s Summary) Empty() bool { return s.Count == 0 }

// Summarize folds records into a Summary. Records may arrive in any order;
// they are stably sorted by timestamp first, so among equal timestamps the
// later input element counts as the more recent one. Invalid records are
// excluded and counted in Skipped. The input slice is not modified.
func Summarize(records []model.Attempt) Summary {
	valid, skipped := SortValid(records)

	var acc Accumulator
	for i := range valid {
		// valid is sorted, so Add cannot report ErrOutOfOrder here.
		_ = acc.Add(valid[i])
	}
	acc.skipped = skipped
	return acc.Summary()
}

// SortValid returns a time-ordered copy of the valid records and the number
// of records dropped because they failed validation.
func SortValid(records []model.Attempt) ([]model.Attempt, int) {
	valid := make([]model.Attempt, 0, len(records))
	for i := range records {
		if records[i].Valid() {
			valid = append(valid, records[i])
		}
	}
	slices.SortStableFunc(valid, func(a, b model.Attempt) int { //nolint:gocritic // hugeParam: attempts are passed by value across the domain
		return a.TS.Compare(b.TS)
	})
	return valid, len(records) - len(valid)
}

// SummarizeBySubject groups records by subject and summarizes each group.
// Records without a subject cannot be attributed and are dropped.
func SummarizeBySubject(records []model.Attempt) map[string]Summary {
	groups := make(map[string][]model.Attempt)
	for i := range records {
		id := records[i].SubjectID
		if id == "" {
			continue
		}
		groups[id] = append(groups[id], records[i])
	}

	out := make(map[string]Summary, len(groups))
	for id, group := range groups {
		out[id] = Summarize(group)
	}
	return out
}
