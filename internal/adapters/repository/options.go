package repository

import (
	"time"

	"github.com/okian/tally/pkg/logger"
)

// Default connection pool settings for SQLStore.
const (
	defaultMaxOpenConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
)

// Option applies a configuration option to a SQLStore.
type Option func(*SQLStore)

// WithMaxOpenConns caps the connection pool. sqlite3 is always capped at one
// connection because it does not support concurrent writers.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithConnMaxLifetime sets how long a pooled connection may be reused.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(s *SQLStore) {
		if d > 0 {
			s.connMaxLifetime = d
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.logger = l
		}
	}
}
