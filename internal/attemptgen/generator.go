package attemptgen

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/okian/tally/internal/domain/model"
)

var categories = []string{"", "linear", "quadratic", "geometry", "vocabulary"}

// Batch is the output of Generate.
type Batch struct {
	Valid   []model.Attempt // distinct attempts the server must accept
	Repeats []model.Attempt // resubmissions of Valid attempts
	Invalid []model.Attempt // attempts the server must reject
}

// Generate builds a deterministic batch for cfg.Seed. Timestamps are drawn
// at random so attempts arrive out of order.
func Generate(cfg *Config) Batch {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	users := names("user", max(cfg.Users, 1))
	subjects := names("subject", max(cfg.Subjects, 1))

	var b Batch
	b.Valid = make([]model.Attempt, 0, cfg.NumAttempts)
	for i := 0; i < cfg.NumAttempts; i++ {
		total := 1 + rng.IntN(10)
		score := rng.IntN(total + 1)
		// the attempt index as a nanosecond offset keeps timestamps unique
		ts := base.Add(time.Duration(rng.IntN(90*24*60))*time.Minute + time.Duration(i))
		a := model.Attempt{
			ID:        newID(rng),
			UserID:    users[rng.IntN(len(users))],
			SubjectID: subjects[rng.IntN(len(subjects))],
			Category:  categories[rng.IntN(len(categories))],
			Score:     score,
			Total:     total,
			TS:        ts,
		}
		if rng.IntN(2) == 0 {
			a.Answers = answers(rng, score, total)
		}
		b.Valid = append(b.Valid, a)
	}

	for i := range b.Valid {
		if rng.Float64() < cfg.DuplicateRate {
			b.Repeats = append(b.Repeats, b.Valid[i])
		}
	}

	invalid := int(float64(cfg.NumAttempts) * cfg.InvalidRate)
	for i := 0; i < invalid; i++ {
		a := b.Valid[rng.IntN(len(b.Valid))]
		a.ID = newID(rng)
		a.Score = a.Total + 1
		a.Answers = nil
		b.Invalid = append(b.Invalid, a)
	}
	return b
}

// answers returns total outcomes with exactly score of them correct.
func answers(rng *rand.Rand, score, total int) []bool {
	out := make([]bool, total)
	for i := 0; i < score; i++ {
		out[i] = true
	}
	rng.Shuffle(total, func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func newID(rng *rand.Rand) string {
	return "att-" + strconv.FormatUint(rng.Uint64(), 16)
}

func names(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + "-" + strconv.Itoa(i+1)
	}
	return out
}

func toPayload(a *model.Attempt) Payload {
	return Payload{
		ID:        a.ID,
		UserID:    a.UserID,
		SubjectID: a.SubjectID,
		Category:  a.Category,
		Score:     a.Score,
		Total:     a.Total,
		Answers:   a.Answers,
		TS:        a.TS.Format(time.RFC3339Nano),
	}
}
