package attemptgen

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/progress"
	"github.com/okian/tally/pkg/logger"
)

const floatTolerance = 1e-9

type pair struct{ user, subject string }

// expected computes the local summaries the server must converge to.
func expected(attempts []model.Attempt) map[pair]progress.Summary {
	groups := make(map[pair][]model.Attempt)
	for i := range attempts {
		k := pair{attempts[i].UserID, attempts[i].SubjectID}
		groups[k] = append(groups[k], attempts[i])
	}
	out := make(map[pair]progress.Summary, len(groups))
	for k, records := range groups {
		out[k] = progress.Summarize(records)
	}
	return out
}

// verify polls every expected summary until it matches or the settle timeout
// expires, and returns the mismatches left at the end.
func verify(ctx context.Context, cfg *Config, client *httpClient, want map[pair]progress.Summary, stats *Stats) []string {
	log := logger.Get().Named("attemptgen")

	keys := make([]pair, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].user != keys[j].user {
			return keys[i].user < keys[j].user
		}
		return keys[i].subject < keys[j].subject
	})

	deadline := time.Now().Add(cfg.SettleTimeout)
	var mismatches []string
	for _, k := range keys {
		for {
			got, err := client.summary(ctx, k.user, k.subject)
			var diff string
			if err != nil {
				diff = err.Error()
			} else {
				diff = compare(want[k], got)
			}
			if diff == "" {
				break
			}
			if time.Now().After(deadline) || ctx.Err() != nil {
				mismatches = append(mismatches, fmt.Sprintf("%s/%s: %s", k.user, k.subject, diff))
				if cfg.Verbose {
					log.Warn(ctx, "summary mismatch", logger.String("user", k.user), logger.String("subject", k.subject), logger.String("diff", diff))
				}
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		stats.Checked++
	}
	stats.Mismatches = len(mismatches)
	return mismatches
}

// compare describes the first difference between two summaries, or "".
func compare(want, got progress.Summary) string {
	switch {
	case want.Count != got.Count:
		return fmt.Sprintf("count want %d got %d", want.Count, got.Count)
	case want.Skipped != got.Skipped:
		return fmt.Sprintf("skipped want %d got %d", want.Skipped, got.Skipped)
	case want.Streak != got.Streak:
		return fmt.Sprintf("streak want %d got %d", want.Streak, got.Streak)
	case !sameInt(want.BestScore, got.BestScore):
		return "best_score differs"
	case !sameInt(want.MostRecentScore, got.MostRecentScore):
		return "most_recent_score differs"
	case !sameFloat(want.AverageScore, got.AverageScore):
		return "average_score differs"
	case !sameFloat(want.AveragePercent, got.AveragePercent):
		return "average_percent differs"
	case !sameTime(want.LastAttemptAt, got.LastAttemptAt):
		return "last_attempt_at differs"
	}
	return ""
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return math.Abs(*a-*b) <= floatTolerance
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
