package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"microgrid/internal/core"
	"microgrid/internal/types"
)

// ManualTicker runs one tick unless another is in progress.
type ManualTicker interface {
	TryTick(ctx context.Context) (types.DispatchResult, error)
}

// DispatchHandler exposes manual ticks and the realtime stream.
type DispatchHandler struct {
	ticker    ManualTicker
	stream    http.Handler
	requireOp func(http.Handler) http.Handler
	logger    *slog.Logger
}

// NewDispatchHandler creates a DispatchHandler. stream may be nil, in which
// case /stream is not mounted.
func NewDispatchHandler(ticker ManualTicker, stream http.Handler, requireOperator func(http.Handler) http.Handler, logger *slog.Logger) *DispatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchHandler{ticker: ticker, stream: stream, requireOp: requireOperator, logger: logger}
}

// RegisterRoutes mounts POST /dispatch/tick and GET /stream.
func (h *DispatchHandler) RegisterRoutes(r chi.Router) {
	r.With(h.requireOp).Post("/dispatch/tick", h.HandleTick)
	if h.stream != nil {
		r.Get("/stream", h.stream.ServeHTTP)
	}
}

// HandleTick handles POST /v1/dispatch/tick. The tick is persisted and
// broadcast exactly like a loop tick.
func (h *DispatchHandler) HandleTick(w http.ResponseWriter, r *http.Request) {
	res, err := h.ticker.TryTick(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "manual tick failed", "error", err)
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: res})
}
