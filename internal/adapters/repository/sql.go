package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var schemas = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS attempts (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL,
			total INTEGER NOT NULL,
			answers TEXT NOT NULL DEFAULT '',
			ts_sec INTEGER,
			ts_nsec INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS attempts_user_subject_ts ON attempts (user_id, subject_id, ts_sec, ts_nsec)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS attempts (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL,
			total INTEGER NOT NULL,
			answers TEXT NOT NULL DEFAULT '',
			ts_sec BIGINT,
			ts_nsec INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS attempts_user_subject_ts ON attempts (user_id, subject_id, ts_sec, ts_nsec)`,
	},
}

const insertAttempt = `
	INSERT INTO attempts (id, user_id, subject_id, category, score, total, answers, ts_sec, ts_nsec)
	VALUES (:id, :user_id, :subject_id, :category, :score, :total, :answers, :ts_sec, :ts_nsec)
	ON CONFLICT (id) DO NOTHING`

const selectAttempts = `
	SELECT id, user_id, subject_id, category, score, total, answers, ts_sec, ts_nsec
	FROM attempts`

// attemptRow is the column mapping of the attempts table. The completion
// time is stored as unix seconds plus nanoseconds; a NULL ts_sec marks a
// missing timestamp.
type attemptRow struct {
	ID        string        `db:"id"`
	UserID    string        `db:"user_id"`
	SubjectID string        `db:"subject_id"`
	Category  string        `db:"category"`
	Score     int           `db:"score"`
	Total     int           `db:"total"`
	Answers   string        `db:"answers"`
	TSSec     sql.NullInt64 `db:"ts_sec"`
	TSNsec    int           `db:"ts_nsec"`
}

func toRow(a *model.Attempt) attemptRow {
	var b strings.Builder
	for _, ok := range a.Answers {
		if ok {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	row := attemptRow{
		ID:        a.ID,
		UserID:    a.UserID,
		SubjectID: a.SubjectID,
		Category:  a.Category,
		Score:     a.Score,
		Total:     a.Total,
		Answers:   b.String(),
	}
	if !a.TS.IsZero() {
		row.TSSec = sql.NullInt64{Int64: a.TS.Unix(), Valid: true}
		row.TSNsec = a.TS.Nanosecond()
	}
	return row
}

func (r *attemptRow) toAttempt() (model.Attempt, error) {
	var answers []bool
	if r.Answers != "" {
		answers = make([]bool, len(r.Answers))
		for i := 0; i < len(r.Answers); i++ {
			switch r.Answers[i] {
			case '1':
				answers[i] = true
			case '0':
			default:
				return model.Attempt{}, fmt.Errorf("%w: id=%s answers=%q", ErrMalformedRow, r.ID, r.Answers)
			}
		}
	}
	var ts time.Time
	if r.TSSec.Valid {
		ts = time.Unix(r.TSSec.Int64, int64(r.TSNsec)).UTC()
	}
	return model.Attempt{
		ID:        r.ID,
		UserID:    r.UserID,
		SubjectID: r.SubjectID,
		Category:  r.Category,
		Score:     r.Score,
		Total:     r.Total,
		Answers:   answers,
		TS:        ts,
	}, nil
}

// SQLStore is a Store backed by sqlite3 or postgres through sqlx.
type SQLStore struct {
	db     *sqlx.DB
	driver string

	maxOpenConns    int
	connMaxLifetime time.Duration
	logger          logger.Logger
}

// OpenSQLStore connects to dsn with driver and creates the schema if needed.
func OpenSQLStore(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	s := &SQLStore{
		driver:          driver,
		maxOpenConns:    defaultMaxOpenConns,
		connMaxLifetime: defaultConnMaxLifetime,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("store")
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenStore, err)
	}
	if driver == DriverSQLite {
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(s.maxOpenConns)
		db.SetConnMaxLifetime(s.connMaxLifetime)
	}
	s.db = db

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: create schema: %w", ErrOpenStore, err)
		}
	}

	s.logger.Info(ctx, "attempt store ready", logger.String("driver", driver))
	return s, nil
}

// Append implements Store.
func (s *SQLStore) Append(ctx context.Context, a model.Attempt) error { //nolint:gocritic // hugeParam: attempts are passed by value across the domain
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryAppendLatency(float64(time.Since(start).Milliseconds()))
	}()

	if a.ID == "" {
		return ErrMissingID
	}
	res, err := s.db.NamedExecContext(ctx, insertAttempt, toRow(&a))
	if err != nil {
		metrics.RecordErrorByComponent("store", "append")
		return fmt.Errorf("append attempt %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append attempt %s: %w", a.ID, err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context, userID, subjectID string) ([]model.Attempt, error) {
	q := s.db.Rebind(selectAttempts + ` WHERE user_id = ? AND subject_id = ? ORDER BY ts_sec, ts_nsec, seq`)
	return s.query(ctx, q, userID, subjectID)
}

// ListByUser implements Store.
func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]model.Attempt, error) {
	q := s.db.Rebind(selectAttempts + ` WHERE user_id = ? ORDER BY ts_sec, ts_nsec, seq`)
	return s.query(ctx, q, userID)
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) ([]model.Attempt, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var rows []attemptRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		metrics.RecordErrorByComponent("store", "query")
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]model.Attempt, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toAttempt()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Subjects implements Store.
func (s *SQLStore) Subjects(ctx context.Context, userID string) ([]string, error) {
	var out []string
	q := s.db.Rebind(`SELECT DISTINCT subject_id FROM attempts WHERE user_id = ? ORDER BY subject_id`)
	if err := s.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return out, nil
}

// Count implements Store. Query failures are logged and reported as zero.
func (s *SQLStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM attempts`); err != nil {
		s.logger.Warn(ctx, "count attempts failed", logger.Error(err))
		return 0
	}
	metrics.UpdateRepositoryRecordsTotal(n)
	return n
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
