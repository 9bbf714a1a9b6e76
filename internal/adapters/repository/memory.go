package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/metrics"
)

// MemoryStore is an in-memory Store. Attempts are kept per user in arrival
// order and sorted by timestamp on read, so ties keep arrival order.
type MemoryStore struct {
	mu     sync.RWMutex
	ids    map[string]struct{}
	byUser map[string][]model.Attempt
	total  int
	closed bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ids:    make(map[string]struct{}),
		byUser: make(map[string][]model.Attempt),
	}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, a model.Attempt) error { //nolint:gocritic // hugeParam: attempts are passed by value across the domain
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryAppendLatency(float64(time.Since(start).Milliseconds()))
	}()

	if a.ID == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, ok := s.ids[a.ID]; ok {
		return ErrDuplicate
	}
	a.Answers = slices.Clone(a.Answers)
	s.ids[a.ID] = struct{}{}
	s.byUser[a.UserID] = append(s.byUser[a.UserID], a)
	s.total++
	metrics.UpdateRepositoryRecordsTotal(s.total)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, userID, subjectID string) ([]model.Attempt, error) {
	return s.collect(userID, func(a *model.Attempt) bool { return a.SubjectID == subjectID })
}

// ListByUser implements Store.
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]model.Attempt, error) {
	return s.collect(userID, func(*model.Attempt) bool { return true })
}

func (s *MemoryStore) collect(userID string, keep func(*model.Attempt) bool) ([]model.Attempt, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	all := s.byUser[userID]
	out := make([]model.Attempt, 0, len(all))
	for i := range all {
		if keep(&all[i]) {
			a := all[i]
			a.Answers = slices.Clone(a.Answers)
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Attempt) int { //nolint:gocritic // hugeParam: attempts are passed by value across the domain
		return a.TS.Compare(b.TS)
	})
	return out, nil
}

// Subjects implements Store.
func (s *MemoryStore) Subjects(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	seen := make(map[string]struct{})
	var out []string
	for _, a := range s.byUser[userID] {
		if _, ok := seen[a.SubjectID]; ok {
			continue
		}
		seen[a.SubjectID] = struct{}{}
		out = append(out, a.SubjectID)
	}
	slices.Sort(out)
	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Close implements Store. Reads and writes after Close return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
