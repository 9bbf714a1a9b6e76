package attemptgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

const filePermission = 0o600

// ErrVerification is returned when server summaries do not converge to the
// locally computed ones.
var ErrVerification = errors.New("summary verification failed")

// Run generates attempts, submits them and verifies the resulting summaries.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("attemptgen")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting attempt run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("attempts", cfg.NumAttempts),
		logger.Int("users", cfg.Users),
		logger.Int("subjects", cfg.Subjects),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	batch := Generate(cfg)
	stats.Generated = len(batch.Valid) + len(batch.Invalid)

	if cfg.OutputFile != "" {
		if err := saveAttempts(cfg.OutputFile, batch.Valid); err != nil {
			log.Warn(ctx, "failed to save attempts", logger.Error(err))
		}
	}

	submit(ctx, cfg, client, batch.Valid, stats)
	submit(ctx, cfg, client, batch.Repeats, stats)
	submit(ctx, cfg, client, batch.Invalid, stats)

	mismatches := verify(ctx, cfg, client, expected(batch.Valid), stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)

	switch {
	case stats.Failed > 0:
		return stats, fmt.Errorf("%w: %d submissions failed", ErrVerification, stats.Failed)
	case stats.Accepted != len(batch.Valid):
		return stats, fmt.Errorf("%w: accepted %d of %d distinct attempts", ErrVerification, stats.Accepted, len(batch.Valid))
	case stats.Rejected != len(batch.Invalid):
		return stats, fmt.Errorf("%w: rejected %d of %d invalid attempts", ErrVerification, stats.Rejected, len(batch.Invalid))
	case len(mismatches) > 0:
		return stats, fmt.Errorf("%w: %d summaries differ, first: %s", ErrVerification, len(mismatches), mismatches[0])
	}
	return stats, nil
}

func checkServiceHealth(ctx context.Context, client *httpClient) error {
	resp, err := client.get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// saveAttempts writes attempts as a document dump readable by tally-report.
func saveAttempts(path string, attempts []model.Attempt) error {
	docs := make([]map[string]any, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		doc := map[string]any{
			"id":              a.ID,
			"userId":          a.UserID,
			"subjectOrCardId": a.SubjectID,
			"score":           a.Score,
			"total":           a.Total,
			"timestamp":       a.TS.Format(time.RFC3339Nano),
		}
		if a.Category != "" {
			doc["category"] = a.Category
		}
		if len(a.Answers) > 0 {
			doc["answers"] = a.Answers
		}
		docs = append(docs, doc)
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, filePermission)
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("checked", stats.Checked),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("submissionsPerSecond", perSecond))
}
