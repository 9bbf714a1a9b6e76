// Package mastery classifies attempts into mastery buckets using a
// caller-supplied policy.
package mastery

import (
	"fmt"
	"math"

	"github.com/okian/tally/internal/domain/model"
)

// Default thresholds, expressed as score/total ratios.
const (
	DefaultMasteredAt = 0.8
	DefaultLearningAt = 0.0
)

// Bucket is the mastery classification of a single attempt.
type Bucket int

const (
	NotStarted Bucket = iota
	Learning
	Mastered
)

func (b Bucket) String() string {
	switch b {
	case Mastered:
		return "mastered"
	case Learning:
		return "learning"
	default:
		return "not-started"
	}
}

// MarshalText renders the bucket name for JSON and YAML encoders.
func (b Bucket) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// ParseBucket is the inverse of Bucket.String.
func ParseBucket(s string) (Bucket, error) {
	switch s {
	case "mastered":
		return Mastered, nil
	case "learning":
		return Learning, nil
	case "not-started":
		return NotStarted, nil
	}
	return NotStarted, fmt.Errorf("%w: %q", ErrUnknownBucket, s)
}

// Classifier assigns a bucket to a valid attempt.
type Classifier interface {
	Classify(a model.Attempt) Bucket
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(a model.Attempt) Bucket

// Classify calls f(a).
func (f ClassifierFunc) Classify(a model.Attempt) Bucket { return f(a) } //nolint:gocritic // hugeParam: attempts are passed by value across the domain

// Option applies a configuration option to a ThresholdPolicy.
type Option func(*ThresholdPolicy)

// WithMasteredAt sets the minimum ratio for the mastered bucket.
func WithMasteredAt(ratio float64) Option {
	return func(p *ThresholdPolicy) {
		p.MasteredAt = ratio
	}
}

// WithLearningAt sets the minimum ratio for the learning bucket. A zero
// ratio still requires at least one correct answer.
func WithLearningAt(ratio float64) Option {
	return func(p *ThresholdPolicy) {
		p.LearningAt = ratio
	}
}

// ThresholdPolicy classifies by score/total ratio.
type ThresholdPolicy struct {
	MasteredAt float64 `koanf:"mastered_at"`
	LearningAt float64 `koanf:"learning_at"`
}

// NewThresholdPolicy builds a policy from the defaults and opts.
func NewThresholdPolicy(opts ...Option) (ThresholdPolicy, error) {
	p := ThresholdPolicy{
		MasteredAt: DefaultMasteredAt,
		LearningAt: DefaultLearningAt,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if err := p.Validate(); err != nil {
		return ThresholdPolicy{}, err
	}
	return p, nil
}

// Validate checks that both thresholds are finite and
// 0 <= LearningAt <= MasteredAt <= 1.
func (p ThresholdPolicy) Validate() error {
	if !finite(p.MasteredAt) || !finite(p.LearningAt) ||
		p.LearningAt < 0 || p.MasteredAt > 1 || p.MasteredAt <= 0 || p.LearningAt > p.MasteredAt {
		return fmt.Errorf("%w: learning_at=%v mastered_at=%v", ErrInvalidPolicy, p.LearningAt, p.MasteredAt)
	}
	return nil
}

// Classify implements Classifier. Attempts without a usable ratio are
// classified as not started.
func (p ThresholdPolicy) Classify(a model.Attempt) Bucket { //nolint:gocritic // hugeParam: attempts are passed by value across the domain
	ratio, ok := a.Ratio()
	switch {
	case !ok || ratio <= 0:
		return NotStarted
	case ratio >= p.MasteredAt:
		return Mastered
	case ratio >= p.LearningAt:
		return Learning
	default:
		return NotStarted
	}
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
