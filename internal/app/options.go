package service

import (
	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/mastery"
	"github.com/okian/tally/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the attempt queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the idempotency window. Zero means unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore injects an already opened store. The caller keeps ownership and
// must close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.ownsStore = false
		}
	}
}

// WithStoreDriver makes Start open a store with repository.Open.
func WithStoreDriver(driver, dsn string, opts ...repository.Option) Option {
	return func(s *Service) {
		s.storeDriver = driver
		s.storeDSN = dsn
		s.storeOpts = opts
	}
}

// WithMasteryPolicy sets the default classification thresholds.
func WithMasteryPolicy(p mastery.ThresholdPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithIDGenerator overrides how IDs are assigned to attempts that arrive
// without one.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}
