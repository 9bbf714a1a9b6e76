// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/tally/internal/domain/mastery"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/progress"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
)

const defaultMaxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AttemptDependencies
	ProgressDependencies
	MasteryDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	attemptsHandler *AttemptsHandler
	progressHandler *ProgressHandler
	masteryHandler  *MasteryHandler

	maxBodyBytes int64
	logger       logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMaxBodyBytes caps request bodies on write endpoints.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.attemptsHandler = NewAttemptsHandler(deps, s.maxBodyBytes, s.logger)
	s.progressHandler = NewProgressHandler(deps, s.logger)
	s.masteryHandler = NewMasteryHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", Instrument(s.healthHandler.HandleHealth, "healthz", s.logger))
	mux.HandleFunc("GET /stats", Instrument(s.statsHandler.HandleStats, "stats", s.logger))
	mux.HandleFunc("POST /attempts", Instrument(s.attemptsHandler.HandlePostAttempt, "attempts", s.logger))
	mux.HandleFunc("POST /attempts/batch", Instrument(s.attemptsHandler.HandlePostBatch, "attempts_batch", s.logger))
	mux.HandleFunc("GET /users/{user}/subjects/{subject}/progress", Instrument(s.progressHandler.HandleSubjectProgress, "subject_progress", s.logger))
	mux.HandleFunc("GET /users/{user}/progress", Instrument(s.progressHandler.HandleUserProgress, "user_progress", s.logger))
	mux.HandleFunc("GET /users/{user}/mastery", Instrument(s.masteryHandler.HandleMastery, "mastery", s.logger))
}

// AttemptDependencies covers the write side.
type AttemptDependencies interface {
	Record(ctx context.Context, a model.Attempt) (types.Ack, error)
	Import(ctx context.Context, attempts []model.Attempt) (types.ImportReport, error)
}

// ProgressDependencies covers summary reads.
type ProgressDependencies interface {
	Summary(ctx context.Context, userID, subjectID string) (progress.Summary, error)
	Subjects(ctx context.Context, userID string) (map[string]progress.Summary, error)
}

// MasteryDependencies covers category breakdown reads.
type MasteryDependencies interface {
	Breakdown(ctx context.Context, userID string, c mastery.Classifier) (map[string]progress.Breakdown, error)
	Policy() mastery.ThresholdPolicy
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	ID        string `json:"id"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status of its kind. Server errors are
// logged and their cause is not echoed to the client.
func writeError(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	code, name := status(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.Error(err))
		msg = http.StatusText(code)
	}
	writeJSON(w, code, errorResponse{Code: name, Message: msg})
}
