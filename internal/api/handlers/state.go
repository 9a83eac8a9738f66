// Package handlers contains the HTTP handlers for the dispatch API. Each
// handler declares the narrow interfaces it needs and mounts itself on a
// chi router through RegisterRoutes.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"microgrid/internal/core"
	"microgrid/internal/types"
)

// maxAlertsListed caps GET /v1/alerts.
const maxAlertsListed = 10

// LatestTickReader returns the most recently persisted tick.
type LatestTickReader interface {
	Latest(ctx context.Context) (*types.DispatchResult, error)
}

// ActiveAlertLister lists active alerts, most urgent first.
type ActiveAlertLister interface {
	ListActive(ctx context.Context, limit int) ([]types.Alert, error)
}

// StateHandler serves the latest tick and the active alerts.
type StateHandler struct {
	ticks    LatestTickReader
	alerts   ActiveAlertLister
	fallback types.SystemState
	logger   *slog.Logger
}

// NewStateHandler creates a StateHandler. fallback is reported while no
// tick has been stored.
func NewStateHandler(ticks LatestTickReader, alerts ActiveAlertLister, fallback types.SystemState, logger *slog.Logger) *StateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateHandler{ticks: ticks, alerts: alerts, fallback: fallback, logger: logger}
}

// RegisterRoutes mounts GET /state and GET /alerts.
func (h *StateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/state", h.HandleGetState)
	r.Get("/alerts", h.HandleListAlerts)
}

// HandleGetState handles GET /v1/state. Before the first tick is stored it
// returns an empty result carrying the default state.
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	latest, err := h.ticks.Latest(r.Context())
	if err != nil {
		if !isCode(err, types.ErrCodeNotFoundTick) {
			core.Error(w, r, err)
			return
		}
		latest = &types.DispatchResult{
			Load:    types.LoadSample{TargetLoadKw: h.fallback.TargetLoadKw},
			Battery: types.BatteryState{SoCPercent: h.fallback.SoCPercent},
			Alerts:  []types.Alert{},
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: latest})
}

// HandleListAlerts handles GET /v1/alerts.
func (h *StateHandler) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.ListActive(r.Context(), maxAlertsListed)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: alerts})
}

func isCode(err error, code types.ErrorCode) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
