package progress

import (
	"github.com/okian/tally/internal/domain/mastery"
	"github.com/okian/tally/internal/domain/model"
)

// Breakdown counts a category's attempts per mastery bucket.
// Mastered + Learning + NotStarted + Skipped == Total.
type Breakdown struct {
	Mastered   int `json:"mastered"`
	Learning   int `json:"learning"`
	NotStarted int `json:"not_started"`
	Skipped    int `json:"skipped"`
	Total      int `json:"total"`
}

// Classified returns the number of attempts that landed in a bucket.
func (b Breakdown) Classified() int { return b.Mastered + b.Learning + b.NotStarted }

func (b *Breakdown) add(bucket mastery.Bucket) {
	switch bucket {
	case mastery.Mastered:
		b.Mastered++
	case mastery.Learning:
		b.Learning++
	default:
		b.NotStarted++
	}
}

// SummarizeByCategory groups records by category and classifies each valid
// record with c. Invalid records are counted as skipped rather than
// classified. A nil classifier uses the default threshold policy.
func SummarizeByCategory(records []model.Attempt, c mastery.Classifier) map[string]Breakdown {
	if c == nil {
		c = mastery.ThresholdPolicy{MasteredAt: mastery.DefaultMasteredAt, LearningAt: mastery.DefaultLearningAt}
	}

	out := make(map[string]Breakdown)
	for i := range records {
		key := records[i].CategoryOrDefault()
		b := out[key]
		b.Total++
		if records[i].Valid() {
			b.add(c.Classify(records[i]))
		} else {
			b.Skipped++
		}
		out[key] = b
	}
	return out
}
