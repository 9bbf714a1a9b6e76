// Package projection keeps per-(user, subject) progress summaries warm as
// attempts are ingested.
//
// Each key owns an incremental progress.Accumulator. Appends and folds for a
// key happen under that key's lock so a summary rebuilt from the store never
// double counts an attempt that is concurrently being folded.
package projection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/progress"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Recompute reasons reported to metrics.
const (
	reasonCold       = "cold"
	reasonOutOfOrder = "out_of_order"
)

// Store is the subset of repository.Store the projection needs.
type Store interface {
	Append(ctx context.Context, a model.Attempt) error
	List(ctx context.Context, userID, subjectID string) ([]model.Attempt, error)
}

type key struct{ user, subject string }

type entry struct {
	mu  sync.Mutex
	acc *progress.Accumulator // nil until first read or rebuild
}

// Summaries is a write-through summary cache in front of a Store.
type Summaries struct {
	store  Store
	logger logger.Logger

	mu      sync.Mutex
	entries map[key]*entry
	warm    int
}

// Option configures Summaries.
type Option func(*Summaries)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Summaries) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Summaries cache over store.
func New(store Store, opts ...Option) *Summaries {
	s := &Summaries{
		store:   store,
		logger:  logger.Get().Named("projection"),
		entries: make(map[key]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Summaries) entry(k key) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[k]
	if !ok {
		e = &entry{}
		s.entries[k] = e
	}
	return e
}

// Record appends a to the store and folds it into the cached summary for its
// key, if one is warm. Store errors, including repository.ErrDuplicate, are
// returned unchanged and nothing is folded.
func (s *Summaries) Record(ctx context.Context, a model.Attempt) error { //nolint:gocritic // hugeParam: attempts are passed by value across the domain
	k := key{a.UserID, a.SubjectID}
	e := s.entry(k)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.store.Append(ctx, a); err != nil {
		return err
	}
	if e.acc == nil {
		return nil
	}

	err := e.acc.Add(a)
	switch {
	case err == nil:
		metrics.RecordAttemptFolded()
		return nil
	case errors.Is(err, progress.ErrOutOfOrder):
		s.logger.Debug(ctx, "late attempt, rebuilding summary",
			logger.String("user", a.UserID),
			logger.String("subject", a.SubjectID),
			logger.String("attempt", a.ID),
		)
		return s.rebuild(ctx, k, e, reasonOutOfOrder)
	default:
		return err
	}
}

// Summary returns the progress summary for one user and subject, rebuilding
// it from the store when it is not cached.
func (s *Summaries) Summary(ctx context.Context, userID, subjectID string) (progress.Summary, error) {
	k := key{userID, subjectID}
	e := s.entry(k)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.acc == nil {
		if err := s.rebuild(ctx, k, e, reasonCold); err != nil {
			return progress.Summary{}, err
		}
	}
	return e.acc.Summary(), nil
}

// rebuild recomputes e from the stored log. Callers hold e.mu.
func (s *Summaries) rebuild(ctx context.Context, k key, e *entry, reason string) error {
	start := time.Now()
	records, err := s.store.List(ctx, k.user, k.subject)
	if err != nil {
		if e.acc != nil {
			e.acc = nil
			s.addWarm(-1)
		}
		return fmt.Errorf("rebuild summary %s/%s: %w", k.user, k.subject, err)
	}

	if e.acc == nil {
		s.addWarm(1)
	}
	e.acc = progress.NewAccumulator(records)

	metrics.RecordSummaryRecompute(reason)
	metrics.RecordSummaryLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

func (s *Summaries) addWarm(delta int) {
	s.mu.Lock()
	s.warm += delta
	n := s.warm
	s.mu.Unlock()
	metrics.UpdateCachedSummaries(n)
}

// Len returns the number of warm summaries.
func (s *Summaries) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warm
}
