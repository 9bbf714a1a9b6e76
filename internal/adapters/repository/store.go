// Package repository persists attempt records. Stores are append-only:
// attempts are never updated or deleted.
package repository

import (
	"context"

	"github.com/okian/tally/internal/domain/model"
)

// Store provides append and read access to the attempt log.
type Store interface {
	// Append stores a new attempt. Returns ErrDuplicate if the ID exists.
	Append(ctx context.Context, a model.Attempt) error

	// List returns a user's attempts for one subject in timestamp order.
	List(ctx context.Context, userID, subjectID string) ([]model.Attempt, error)

	// ListByUser returns all of a user's attempts in timestamp order.
	ListByUser(ctx context.Context, userID string) ([]model.Attempt, error)

	// Subjects returns the distinct subjects a user has attempts for, sorted.
	Subjects(ctx context.Context, userID string) ([]string, error)

	// Count returns the number of stored attempts.
	Count(ctx context.Context) int

	Close() error
}

// DriverMemory selects MemoryStore in Open.
const DriverMemory = "memory"

// Open returns the Store for driver: "memory", "sqlite3" or "postgres".
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	if driver == DriverMemory || driver == "" {
		return NewMemoryStore(), nil
	}
	return OpenSQLStore(ctx, driver, dsn, opts...)
}
