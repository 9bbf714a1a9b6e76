package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/okian/tally/pkg/logger"
)

// MasteryHandler serves per-category mastery breakdowns.
type MasteryHandler struct {
	deps   MasteryDependencies
	logger logger.Logger
}

// NewMasteryHandler creates a new mastery handler.
func NewMasteryHandler(deps MasteryDependencies, l logger.Logger) *MasteryHandler {
	return &MasteryHandler{deps: deps, logger: l}
}

// HandleMastery handles GET /users/{user}/mastery?mastered_at=&learning_at=.
// Query thresholds override the configured policy for this request only.
func (h *MasteryHandler) HandleMastery(w http.ResponseWriter, r *http.Request) {
	const op = "api.mastery"
	ctx := r.Context()

	policy := h.deps.Policy()
	q := r.URL.Query()
	if err := ratioParam(q, "mastered_at", &policy.MasteredAt); err != nil {
		writeError(ctx, w, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := ratioParam(q, "learning_at", &policy.LearningAt); err != nil {
		writeError(ctx, w, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := policy.Validate(); err != nil {
		writeError(ctx, w, h.logger, WrapKind(op, ErrBadRequest, err))
		return
	}

	breakdown, err := h.deps.Breakdown(ctx, r.PathValue("user"), policy)
	if err != nil {
		writeError(ctx, w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

// ratioParam overwrites dst when the query carries name.
func ratioParam(q url.Values, name string, dst *float64) error {
	raw := q.Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", name, raw)
	}
	*dst = v
	return nil
}
