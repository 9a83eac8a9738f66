package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"microgrid/internal/advisory"
	"microgrid/internal/core"
)

// Advisor produces advisory reports.
type Advisor interface {
	Advise(ctx context.Context, req advisory.Request) (advisory.Report, error)
}

// AdvisoryHandler serves POST /v1/advisory.
type AdvisoryHandler struct {
	advisor Advisor
	logger  *slog.Logger
}

// NewAdvisoryHandler creates an AdvisoryHandler.
func NewAdvisoryHandler(advisor Advisor, logger *slog.Logger) *AdvisoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvisoryHandler{advisor: advisor, logger: logger}
}

// RegisterRoutes mounts POST /advisory.
func (h *AdvisoryHandler) RegisterRoutes(r chi.Router) {
	r.Post("/advisory", h.HandleAdvise)
}

// HandleAdvise handles POST /v1/advisory. An empty body is treated as
// {"type":"optimize","timeframe":"24h"}; unknown selectors are rejected by
// the advisory service.
func (h *AdvisoryHandler) HandleAdvise(w http.ResponseWriter, r *http.Request) {
	var req advisory.Request
	if r.ContentLength != 0 {
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	report, err := h.advisor.Advise(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}
