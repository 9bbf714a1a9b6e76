package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

// attemptRequest mirrors the OpenAPI schema for POST /attempts.
type attemptRequest struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	SubjectID string `json:"subject_id"`
	Category  string `json:"category"`
	Score     int    `json:"score"`
	Total     int    `json:"total"`
	Answers   []bool `json:"answers"`
	TS        string `json:"ts"`
}

// toAttempt checks the wire shape. Domain rules are enforced by the service.
func (r *attemptRequest) toAttempt() (model.Attempt, error) {
	a := model.Attempt{
		ID:        strings.TrimSpace(r.ID),
		UserID:    strings.TrimSpace(r.UserID),
		SubjectID: strings.TrimSpace(r.SubjectID),
		Category:  strings.TrimSpace(r.Category),
		Score:     r.Score,
		Total:     r.Total,
		Answers:   r.Answers,
	}
	if strings.TrimSpace(r.TS) == "" {
		return a, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, r.TS)
	if err != nil {
		return a, errors.New("invalid ts; must be RFC3339")
	}
	a.TS = ts
	return a, nil
}

// AttemptsHandler handles attempt ingestion.
type AttemptsHandler struct {
	deps         AttemptDependencies
	maxBodyBytes int64
	logger       logger.Logger
}

// NewAttemptsHandler creates a new attempts handler.
func NewAttemptsHandler(deps AttemptDependencies, maxBodyBytes int64, l logger.Logger) *AttemptsHandler {
	return &AttemptsHandler{deps: deps, maxBodyBytes: maxBodyBytes, logger: l}
}

// HandlePostAttempt handles POST /attempts.
func (h *AttemptsHandler) HandlePostAttempt(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_attempt"
	ctx := r.Context()

	var req attemptRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(ctx, w, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}
	a, err := req.toAttempt()
	if err != nil {
		writeError(ctx, w, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}

	ack, err := h.deps.Record(ctx, a)
	if err != nil {
		writeError(ctx, w, h.logger, Wrap(op, err))
		return
	}
	if ack.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, ID: ack.ID})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: ack.ID})
}

// HandlePostBatch handles POST /attempts/batch. Attempts are stored before
// the response is written.
func (h *AttemptsHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_batch"
	ctx := r.Context()

	var reqs []attemptRequest
	if err := h.decode(w, r, &reqs); err != nil {
		writeError(ctx, w, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}

	attempts := make([]model.Attempt, 0, len(reqs))
	for i := range reqs {
		a, err := reqs[i].toAttempt()
		if err != nil {
			writeError(ctx, w, h.logger, WrapKind(op, ErrBadRequest, fmt.Errorf("attempt %d: %w", i, err)))
			return
		}
		attempts = append(attempts, a)
	}

	rep, err := h.deps.Import(ctx, attempts)
	if err != nil {
		writeError(ctx, w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *AttemptsHandler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
