package api

import (
	"net/http"

	"github.com/okian/tally/pkg/logger"
)

// ProgressHandler serves progress summaries.
type ProgressHandler struct {
	deps   ProgressDependencies
	logger logger.Logger
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(deps ProgressDependencies, l logger.Logger) *ProgressHandler {
	return &ProgressHandler{deps: deps, logger: l}
}

// HandleSubjectProgress handles GET /users/{user}/subjects/{subject}/progress.
// A subject without attempts renders the empty summary with null statistics.
func (h *ProgressHandler) HandleSubjectProgress(w http.ResponseWriter, r *http.Request) {
	const op = "api.subject_progress"
	ctx := r.Context()

	summary, err := h.deps.Summary(ctx, r.PathValue("user"), r.PathValue("subject"))
	if err != nil {
		writeError(ctx, w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleUserProgress handles GET /users/{user}/progress.
func (h *ProgressHandler) HandleUserProgress(w http.ResponseWriter, r *http.Request) {
	const op = "api.user_progress"
	ctx := r.Context()

	subjects, err := h.deps.Subjects(ctx, r.PathValue("user"))
	if err != nil {
		writeError(ctx, w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}
