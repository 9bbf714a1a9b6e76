package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/http/swagger"
	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/adapters/scheduler"
	"github.com/okian/tally/internal/adapters/source"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// application holds the long-lived components started by main.
type application struct {
	cfg    *config.Config
	log    logger.Logger
	svc    *service.Service
	sched  *scheduler.Scheduler
	server *http.Server
}

func main() {
	seedPath := flag.String("seed", "", "JSON or XLSX attempt export to import at startup")
	flag.Parse()

	if err := run(*seedPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(seedPath string) error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(metricsOptions(cfg.Metrics)...)

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}

	if seedPath != "" {
		if err := app.seed(ctx, seedPath); err != nil {
			log.Error(ctx, "seed import failed", logger.String("path", seedPath), logger.Error(err))
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		log.Error(ctx, "HTTP server failed", logger.Error(err))
	}

	log.Info(ctx, "shutting down server...")
	app.shutdown(context.WithoutCancel(ctx))
	log.Info(ctx, "server stopped")
	return err
}

// newApplication starts the service and scheduler and builds the HTTP server.
func newApplication(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	svc := service.New(
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithMasteryPolicy(cfg.Mastery),
		service.WithStoreDriver(cfg.Store.Driver, cfg.Store.DSN,
			repository.WithMaxOpenConns(cfg.Store.MaxOpenConns),
			repository.WithConnMaxLifetime(cfg.Store.ConnLifetime),
		),
	)
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start service: %w", err)
	}

	sched := scheduler.New(scheduler.WithLogger(log.Named("scheduler")))
	if err := sched.RegisterDefaults(svc, cfg.Scheduler.StatsInterval, cfg.Scheduler.SystemInterval); err != nil {
		svc.Stop()
		return nil, fmt.Errorf("register jobs: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		svc.Stop()
		return nil, fmt.Errorf("start scheduler: %w", err)
	}

	// HTTP mux and routes.
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc,
		api.WithMaxBodyBytes(cfg.MaxBodyBytes),
		api.WithLogger(log.Named("api")),
	).Register(ctx, mux)

	return &application{
		cfg:   cfg,
		log:   log,
		svc:   svc,
		sched: sched,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

// seed imports an attempt export synchronously before traffic is served.
func (a *application) seed(ctx context.Context, path string) error {
	attempts, problems, err := source.LoadFile(path)
	if err != nil {
		return err
	}
	for _, p := range problems {
		a.log.Warn(ctx, "skipped record", logger.String("path", path), logger.String("problem", p))
	}

	report, err := a.svc.Import(ctx, attempts)
	if err != nil {
		return err
	}
	a.log.Info(ctx, "seed imported",
		logger.String("path", path),
		logger.Int("accepted", report.Accepted),
		logger.Int("duplicates", report.Duplicates),
		logger.Int("invalid", report.Invalid+len(problems)),
	)
	return nil
}

// shutdown stops accepting requests, then drains ingestion.
func (a *application) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	a.sched.Stop()
	a.svc.Stop()
}

func metricsOptions(mc config.MetricsConfig) []metrics.Option {
	return []metrics.Option{
		metrics.WithNamespace(mc.Namespace),
		metrics.WithSubsystem(mc.Subsystem),
		metrics.WithHistogramBuckets(mc.Buckets),
		metrics.WithConstLabels(mc.Labels),
	}
}
