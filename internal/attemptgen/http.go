package attemptgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/progress"
	"github.com/okian/tally/pkg/logger"
)

// Submission outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

const maxRetries = 6

// httpClient wraps http.Client with the service base URL.
type httpClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	return &httpClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (c *httpClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

func (c *httpClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// summary fetches one (user, subject) summary from the server.
func (c *httpClient) summary(ctx context.Context, user, subject string) (progress.Summary, error) {
	resp, err := c.get(ctx, "/users/"+user+"/subjects/"+subject+"/progress")
	if err != nil {
		return progress.Summary{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return progress.Summary{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var s progress.Summary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return progress.Summary{}, fmt.Errorf("failed to decode summary: %w", err)
	}
	return s, nil
}

// submit posts attempts with cfg.Workers concurrent submitters and tallies
// the outcomes into stats.
func submit(ctx context.Context, cfg *Config, client *httpClient, attempts []model.Attempt, stats *Stats) {
	log := logger.Get().Named("attemptgen")
	log.Info(ctx, "submitting attempts", logger.Int("count", len(attempts)), logger.Int("workers", cfg.Workers))

	var submitted, accepted, duplicate, rejected, failed atomic.Int64

	work := make(chan Payload, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < max(cfg.Workers, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				submitted.Add(1)
				switch submitOne(ctx, client, p) {
				case outcomeAccepted:
					accepted.Add(1)
				case outcomeDuplicate:
					duplicate.Add(1)
				case outcomeRejected:
					rejected.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for i := range attempts {
			select {
			case <-ctx.Done():
				return
			case work <- toPayload(&attempts[i]):
			}
		}
	}()

	wg.Wait()

	stats.Submitted += int(submitted.Load())
	stats.Accepted += int(accepted.Load())
	stats.Duplicates += int(duplicate.Load())
	stats.Rejected += int(rejected.Load())
	stats.Failed += int(failed.Load())
}

// submitOne posts one attempt, backing off while the server reports
// backpressure.
func submitOne(ctx context.Context, client *httpClient, p Payload) string {
	backoff := 10 * time.Millisecond
	for try := 0; try < maxRetries; try++ {
		status, ack, err := postAttempt(ctx, client, p)
		if err != nil {
			return outcomeFailed
		}
		switch status {
		case http.StatusAccepted:
			return outcomeAccepted
		case http.StatusOK:
			if ack.Duplicate {
				return outcomeDuplicate
			}
			return outcomeFailed
		case http.StatusBadRequest:
			return outcomeRejected
		case http.StatusTooManyRequests:
			select {
			case <-ctx.Done():
				return outcomeFailed
			case <-time.After(backoff):
			}
			backoff *= 2
		default:
			return outcomeFailed
		}
	}
	return outcomeFailed
}

func postAttempt(ctx context.Context, client *httpClient, p Payload) (int, AckResponse, error) {
	resp, err := client.post(ctx, "/attempts", p)
	if err != nil {
		return 0, AckResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, AckResponse{}, err
	}
	var ack AckResponse
	_ = json.Unmarshal(body, &ack)
	return resp.StatusCode, ack, nil
}
