package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/tally/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 100_000)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "memory")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TALLY_ADDR", ":8080")
			_ = os.Setenv("TALLY_QUEUE_SIZE", "1000")
			_ = os.Setenv("TALLY_WORKER_COUNT", "16")
			_ = os.Setenv("TALLY_STORE__DRIVER", "sqlite3")
			_ = os.Setenv("TALLY_STORE__DSN", "file:tally.db")
			_ = os.Setenv("TALLY_MASTERY__MASTERED_AT", "0.9")
			_ = os.Setenv("TALLY_SCHEDULER__STATS_INTERVAL", "5s")
			_ = os.Setenv("TALLY_METRICS__NAMESPACE", "study")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.Store.Driver, convey.ShouldEqual, "sqlite3")
				convey.So(cfg.Store.DSN, convey.ShouldEqual, "file:tally.db")
				convey.So(cfg.Mastery.MasteredAt, convey.ShouldEqual, 0.9)
				convey.So(cfg.Scheduler.StatsInterval, convey.ShouldEqual, 5*time.Second)
				convey.So(cfg.Metrics.Namespace, convey.ShouldEqual, "study")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
# comments are fine
addr: ":9090"
queue_size: 3000
log_format: json
store:
  driver: sqlite3
  dsn: /tmp/tally.db
mastery:
  mastered_at: 0.75
  learning_at: 0.25
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TALLY_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 3000)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.Store.DSN, convey.ShouldEqual, "/tmp/tally.db")
				convey.So(cfg.Mastery.MasteredAt, convey.ShouldEqual, 0.75)
				convey.So(cfg.Mastery.LearningAt, convey.ShouldEqual, 0.25)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 500_000)
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nqueue_size: 3000\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TALLY_CONFIG", tmpFile)
			_ = os.Setenv("TALLY_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 3000)
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("TALLY_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("TALLY_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a numeric variable is malformed", func() {
			_ = os.Setenv("TALLY_QUEUE_SIZE", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the addr is empty", func() {
			_ = os.Setenv("TALLY_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr is required")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the mastery policy is inconsistent", func() {
			_ = os.Setenv("TALLY_MASTERY__LEARNING_AT", "0.95")

			_, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a dotenv file is present", func() {
			path := filepath.Join(t.TempDir(), "tally.env")
			convey.So(os.WriteFile(path, []byte("TALLY_QUEUE_SIZE=77\nTALLY_ADDR=:7000\n"), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("TALLY_ENV_FILE", path)
			_ = os.Setenv("TALLY_ADDR", ":6000")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should fill unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 77)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6000")
			})
		})

		convey.Convey("When the dotenv path cannot be read", func() {
			_ = os.Setenv("TALLY_ENV_FILE", t.TempDir())

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "TALLY_") {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "tally-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
