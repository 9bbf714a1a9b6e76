package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/okian/tally/internal/attemptgen"
	"github.com/okian/tally/pkg/logger"
)

// Default configuration constants.
const (
	defaultAttempts    = 5000
	defaultUsers       = 20
	defaultSubjects    = 5
	defaultDuplicates  = 0.05
	defaultInvalid     = 0.02
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultSettle      = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		attempts   = flag.Int("attempts", defaultAttempts, "Distinct attempts to generate")
		users      = flag.Int("users", defaultUsers, "Synthetic users")
		subjects   = flag.Int("subjects", defaultSubjects, "Subjects per user")
		duplicates = flag.Float64("duplicates", defaultDuplicates, "Fraction of attempts resubmitted")
		invalid    = flag.Float64("invalid", defaultInvalid, "Fraction of extra invalid attempts")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", defaultSettle, "Time allowed for summaries to converge")
		seed       = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed")
		outputFile = flag.String("output", "", "Write the generated attempts as a JSON document dump")
		verbose    = flag.Bool("verbose", false, "Log every mismatch")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		attemptgen.ShowHelp()
		return
	}

	if err := logger.Init(logger.WithService("attempt-gen")); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	_, err := attemptgen.Run(ctx, &attemptgen.Config{
		BaseURL:       *baseURL,
		NumAttempts:   *attempts,
		Users:         *users,
		Subjects:      *subjects,
		DuplicateRate: *duplicates,
		InvalidRate:   *invalid,
		Workers:       *workers,
		Timeout:       *timeout,
		SettleTimeout: *settle,
		Seed:          *seed,
		OutputFile:    *outputFile,
		Verbose:       *verbose,
	})
	if err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, "run failed:", err)
		os.Exit(1) //nolint:gocritic // cancel already called
	}
}
