// Package service wires ingestion, storage and aggregation together and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	attemptqueue "github.com/okian/tally/internal/adapters/mq/queue"
	workerpool "github.com/okian/tally/internal/adapters/mq/worker"
	"github.com/okian/tally/internal/adapters/projection"
	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/dedupe"
	"github.com/okian/tally/internal/domain/mastery"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/progress"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Ack acknowledges an accepted attempt.
type Ack = types.Ack

// ImportReport summarizes a bulk import.
type ImportReport = types.ImportReport

// Service implements the API dependencies for the progress tracker.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	ownsStore bool
	deduper   dedupe.Deduper
	queue     *attemptqueue.InMemoryQueue
	summaries *projection.Summaries
	pool      *workerpool.Pool

	workerCount int
	queueSize   int
	dedupeSize  int
	storeDriver string
	storeDSN    string
	storeOpts   []repository.Option
	policy      mastery.ThresholdPolicy
	newID       func() string

	invalid atomic.Int64
	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   100_000,
		dedupeSize:  50_000,
		storeDriver: repository.DriverMemory,
		ownsStore:   true,
		policy: mastery.ThresholdPolicy{
			MasteredAt: mastery.DefaultMasteredAt,
			LearningAt: mastery.DefaultLearningAt,
		},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and starts the ingestion workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.policy.Validate(); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	s.logger.Info(ctx, "starting progress service...")

	if s.store == nil {
		store, err := repository.Open(ctx, s.storeDriver, s.storeDSN, s.storeOpts...)
		if err != nil {
			return fmt.Errorf("start service: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = attemptqueue.NewInMemoryQueue(attemptqueue.WithCapacity(s.queueSize))
	s.summaries = projection.New(s.store, projection.WithLogger(s.logger.Named("projection")))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.summaries,
		workerpool.WithFailureHandler(s.onRecordFailure),
	)
	// workers drain the queue on Stop, so they must outlive the caller's ctx
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "progress service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("store", s.storeDriver),
	)
	return nil
}

// Stop drains the queue and releases the store if the service opened it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping progress service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Error(ctx, "closing store", logger.Error(err))
		}
		s.store = nil
	}

	s.started = false
	s.logger.Info(ctx, "progress service stopped")
}

func (s *Service) onRecordFailure(ctx context.Context, a model.Attempt, err error) { //nolint:gocritic // hugeParam: attempts are passed by value across the domain
	// let the client retry the same ID
	s.deduper.Unrecord(ctx, a.ID)
	s.logger.Error(ctx, "attempt dropped",
		logger.String("attempt", a.ID),
		logger.String("user", a.UserID),
		logger.Error(err),
	)
}

// admit validates a and assigns an ID when missing.
func (s *Service) admit(a *model.Attempt) error {
	if a.UserID == "" {
		s.invalid.Add(1)
		metrics.RecordAttemptInvalid("missing_user")
		return fmt.Errorf("%w: %w", ErrInvalidAttempt, ErrMissingUser)
	}
	if a.SubjectID == "" {
		s.invalid.Add(1)
		metrics.RecordAttemptInvalid("missing_subject")
		return fmt.Errorf("%w: %w", ErrInvalidAttempt, ErrMissingSubject)
	}
	if err := a.Validate(); err != nil {
		s.invalid.Add(1)
		metrics.RecordAttemptInvalid(invalidReason(err))
		return fmt.Errorf("%w: %w", ErrInvalidAttempt, err)
	}
	if a.ID == "" {
		a.ID = s.newID()
	}
	return nil
}

// Record validates an attempt and queues it for storage and aggregation.
// A repeated ID is acknowledged as a duplicate and not queued again.
func (s *Service) Record(ctx context.Context, a model.Attempt) (Ack, error) { //nolint:gocritic // hugeParam: attempts are passed by value across the domain
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return Ack{}, ErrNotStarted
	}
	if err := s.admit(&a); err != nil {
		return Ack{}, err
	}

	if s.deduper.SeenAndRecord(ctx, a.ID) {
		metrics.RecordAttemptDuplicate()
		s.logger.Debug(ctx, "duplicate attempt", logger.String("attempt", a.ID))
		return Ack{ID: a.ID, Duplicate: true}, nil
	}

	if err := s.queue.Enqueue(ctx, a); err != nil {
		s.deduper.Unrecord(ctx, a.ID)
		if errors.Is(err, attemptqueue.ErrFull) {
			return Ack{}, ErrBackpressure
		}
		return Ack{}, fmt.Errorf("enqueue attempt %s: %w", a.ID, err)
	}

	metrics.RecordAttemptAccepted()
	return Ack{ID: a.ID}, nil
}

// Import stores attempts synchronously, bypassing the queue. Invalid
// attempts and duplicates are counted, not fatal.
func (s *Service) Import(ctx context.Context, attempts []model.Attempt) (ImportReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rep ImportReport
	if !s.started {
		return rep, ErrNotStarted
	}

	for i := range attempts {
		a := attempts[i]
		if err := s.admit(&a); err != nil {
			rep.Invalid++
			rep.Errors = append(rep.Errors, fmt.Sprintf("attempt %d: %v", i, err))
			continue
		}
		if s.deduper.SeenAndRecord(ctx, a.ID) {
			rep.Duplicates++
			metrics.RecordAttemptDuplicate()
			continue
		}

		err := s.summaries.Record(ctx, a)
		switch {
		case err == nil:
			rep.Accepted++
			metrics.RecordAttemptAccepted()
		case errors.Is(err, repository.ErrDuplicate):
			rep.Duplicates++
			metrics.RecordAttemptDuplicate()
		default:
			s.deduper.Unrecord(ctx, a.ID)
			return rep, fmt.Errorf("import attempt %s: %w", a.ID, err)
		}
	}

	s.logger.Info(ctx, "import finished",
		logger.Int("accepted", rep.Accepted),
		logger.Int("duplicates", rep.Duplicates),
		logger.Int("invalid", rep.Invalid),
	)
	return rep, nil
}

// Summary returns a user's progress for one subject. A subject with no
// attempts yields the empty summary, not an error.
func (s *Service) Summary(ctx context.Context, userID, subjectID string) (progress.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return progress.Summary{}, ErrNotStarted
	}
	return s.summaries.Summary(ctx, userID, subjectID)
}

// Subjects returns a user's progress for every subject they attempted.
func (s *Service) Subjects(ctx context.Context, userID string) (map[string]progress.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}

	subjects, err := s.store.Subjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subjects for %s: %w", userID, err)
	}
	out := make(map[string]progress.Summary, len(subjects))
	for _, subject := range subjects {
		sum, err := s.summaries.Summary(ctx, userID, subject)
		if err != nil {
			return nil, err
		}
		out[subject] = sum
	}
	return out, nil
}

// Breakdown groups a user's attempts by category and classifies each one.
// A nil classifier uses the configured policy.
func (s *Service) Breakdown(ctx context.Context, userID string, c mastery.Classifier) (map[string]progress.Breakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	if c == nil {
		c = s.policy
	}

	start := time.Now()
	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts for %s: %w", userID, err)
	}
	out := progress.SummarizeByCategory(records, c)
	metrics.RecordSummaryLatency(float64(time.Since(start).Milliseconds()))
	return out, nil
}

// Policy returns the configured mastery thresholds.
func (s *Service) Policy() mastery.ThresholdPolicy {
	return s.policy
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"storeDriver":     s.storeDriver,
		"invalidAttempts": s.invalid.Load(),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		records := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["records"] = records
		stats["cachedSummaries"] = s.summaries.Len()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["processed"] = s.pool.Processed()
		stats["failed"] = s.pool.Failed()

		metrics.UpdateRepositoryRecordsTotal(records)
		metrics.UpdateCachedSummaries(s.summaries.Len())
	}
	return stats
}

func invalidReason(err error) string {
	switch {
	case errors.Is(err, model.ErrZeroTotal):
		return "zero_total"
	case errors.Is(err, model.ErrNegativeScore):
		return "negative_score"
	case errors.Is(err, model.ErrScoreExceedsTotal):
		return "score_exceeds_total"
	case errors.Is(err, model.ErrMissingTimestamp):
		return "missing_timestamp"
	case errors.Is(err, model.ErrAnswersMismatch):
		return "answers_mismatch"
	default:
		return "other"
	}
}
