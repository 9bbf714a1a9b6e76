// Command tally-report summarizes an attempt export offline. It reads a JSON
// document dump or an XLSX export and prints per-subject summaries and
// per-category mastery for every user as JSON.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/okian/tally/internal/adapters/source"
	"github.com/okian/tally/internal/domain/mastery"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/progress"
)

// Report is the JSON document printed by the command.
type Report struct {
	Policy   Policy                `json:"policy"`
	Users    map[string]UserReport `json:"users"`
	Problems []string              `json:"problems,omitempty"`
}

// Policy echoes the thresholds the categories were classified with.
type Policy struct {
	MasteredAt float64 `json:"mastered_at"`
	LearningAt float64 `json:"learning_at"`
}

// UserReport holds the summaries of one user.
type UserReport struct {
	Subjects   map[string]progress.Summary   `json:"subjects"`
	Categories map[string]progress.Breakdown `json:"categories"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "tally-report:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tally-report", flag.ContinueOnError)
	in := fs.String("in", "", "attempt export (.json or .xlsx)")
	user := fs.String("user", "", "only report this user")
	masteredAt := fs.Float64("mastered_at", mastery.DefaultMasteredAt, "ratio at or above which a category is mastered")
	learningAt := fs.Float64("learning_at", mastery.DefaultLearningAt, "ratio at or above which a category is learning")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("-in is required")
	}

	policy, err := mastery.NewThresholdPolicy(
		mastery.WithMasteredAt(*masteredAt),
		mastery.WithLearningAt(*learningAt),
	)
	if err != nil {
		return err
	}

	attempts, problems, err := source.LoadFile(*in)
	if err != nil {
		return err
	}
	if *user != "" {
		attempts = forUser(attempts, *user)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(build(attempts, problems, policy))
}

// build groups attempts by user and summarizes each group.
func build(attempts []model.Attempt, problems []string, policy mastery.ThresholdPolicy) Report {
	byUser := make(map[string][]model.Attempt)
	for i := range attempts {
		byUser[attempts[i].UserID] = append(byUser[attempts[i].UserID], attempts[i])
	}

	r := Report{
		Policy:   Policy{MasteredAt: policy.MasteredAt, LearningAt: policy.LearningAt},
		Users:    make(map[string]UserReport, len(byUser)),
		Problems: problems,
	}
	for u, records := range byUser {
		r.Users[u] = UserReport{
			Subjects:   progress.SummarizeBySubject(records),
			Categories: progress.SummarizeByCategory(records, policy),
		}
	}
	return r
}

func forUser(attempts []model.Attempt, user string) []model.Attempt {
	out := attempts[:0]
	for i := range attempts {
		if attempts[i].UserID == user {
			out = append(out, attempts[i])
		}
	}
	return out
}
