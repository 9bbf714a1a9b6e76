// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and the environment on top.
// - Nested sections map to koanf paths ("store.driver", "mastery.mastered_at").
package config

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/mastery"
)

// validate checks the field constraints declared in validate tags and names
// fields by their koanf key.
var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("koanf")
	})
	return v
}()

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the in-memory attempt queue.
	QueueSize int `koanf:"queue_size" validate:"gt=0"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count" validate:"gt=0"`

	// DedupeSize sets the size of the attempt ID idempotency window.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// MaxBodyBytes caps POST /attempts request bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"gt=0"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	Store     StoreConfig             `koanf:"store"`
	Mastery   mastery.ThresholdPolicy `koanf:"mastery"`
	Scheduler SchedulerConfig         `koanf:"scheduler"`
	Metrics   MetricsConfig           `koanf:"metrics"`
}

// StoreConfig selects the attempt record store.
type StoreConfig struct {
	// Driver is one of memory, sqlite3, postgres.
	Driver string `koanf:"driver" validate:"oneof=memory sqlite3 postgres"`
	// DSN is passed to the SQL driver; ignored for memory.
	DSN          string        `koanf:"dsn" validate:"required_unless=Driver memory"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	ConnLifetime time.Duration `koanf:"conn_lifetime"`
}

// SchedulerConfig controls periodic background jobs.
type SchedulerConfig struct {
	StatsInterval  time.Duration `koanf:"stats_interval" validate:"gt=0"`
	SystemInterval time.Duration `koanf:"system_interval" validate:"gt=0"`
}

// MetricsConfig names the Prometheus series exposed on /healthz.
type MetricsConfig struct {
	Namespace string            `koanf:"namespace" validate:"required"`
	Subsystem string            `koanf:"subsystem"`
	Buckets   []float64         `koanf:"buckets" validate:"omitempty,dive,gt=0"`
	Labels    map[string]string `koanf:"labels"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		QueueSize:       100_000,
		WorkerCount:     runtime.NumCPU() * 2,
		DedupeSize:      500_000,
		MaxBodyBytes:    1 << 20,
		ShutdownTimeout: 10 * time.Second,
		Store: StoreConfig{
			Driver:       repository.DriverMemory,
			MaxOpenConns: 10,
			ConnLifetime: 30 * time.Minute,
		},
		Mastery: mastery.ThresholdPolicy{
			MasteredAt: mastery.DefaultMasteredAt,
			LearningAt: mastery.DefaultLearningAt,
		},
		Scheduler: SchedulerConfig{
			StatsInterval:  15 * time.Second,
			SystemInterval: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Namespace: "tally",
			Subsystem: "progress",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, describe(fieldErrs[0]))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := c.Mastery.Validate(); err != nil {
		return fmt.Errorf("%w: mastery: %w", ErrInvalidConfig, err)
	}
	return nil
}

// describe renders a field error using the koanf key of the field.
func describe(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_unless":
		return key + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s must be %s %s", key, fe.Tag(), fe.Param())
	}
}
