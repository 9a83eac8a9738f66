package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"microgrid/internal/core"
	"microgrid/internal/types"
)

// TargetLoadStore reads and writes the operator setpoint.
type TargetLoadStore interface {
	TargetLoad(ctx context.Context) (float64, error)
	SetTargetLoad(ctx context.Context, targetKw float64) error
}

// TargetLoadRequest is the body of PUT /v1/settings/target-load.
type TargetLoadRequest struct {
	TargetLoadKw float64 `json:"target_load_kw" validate:"target_load"`
}

// TargetLoadResponse reports the setpoint the next tick will use.
type TargetLoadResponse struct {
	TargetLoadKw float64 `json:"target_load_kw"`
	IsDefault    bool    `json:"is_default"`
}

// SettingsHandler manages the target load setpoint.
type SettingsHandler struct {
	store         TargetLoadStore
	validator     *core.Validator
	requireOp     func(http.Handler) http.Handler
	defaultTarget float64
	logger        *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler. requireOperator guards the
// write route.
func NewSettingsHandler(store TargetLoadStore, val *core.Validator, requireOperator func(http.Handler) http.Handler, defaultTarget float64, logger *slog.Logger) *SettingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsHandler{
		store:         store,
		validator:     val,
		requireOp:     requireOperator,
		defaultTarget: defaultTarget,
		logger:        logger,
	}
}

// RegisterRoutes mounts GET and PUT /settings/target-load.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings/target-load", h.HandleGetTargetLoad)
	r.With(h.requireOp).Put("/settings/target-load", h.HandlePutTargetLoad)
}

// HandleGetTargetLoad handles GET /v1/settings/target-load.
func (h *SettingsHandler) HandleGetTargetLoad(w http.ResponseWriter, r *http.Request) {
	kw, err := h.store.TargetLoad(r.Context())
	if err != nil {
		if !isCode(err, types.ErrCodeNotFoundSetting) {
			core.Error(w, r, err)
			return
		}
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: TargetLoadResponse{TargetLoadKw: h.defaultTarget, IsDefault: true}})
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: TargetLoadResponse{TargetLoadKw: kw}})
}

// HandlePutTargetLoad handles PUT /v1/settings/target-load. Values outside
// (0, 2000] kW are rejected with validation_target_load_out_of_range and
// never reach the store.
func (h *SettingsHandler) HandlePutTargetLoad(w http.ResponseWriter, r *http.Request) {
	var req TargetLoadRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.store.SetTargetLoad(r.Context(), req.TargetLoadKw); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "target load updated",
		"target_load_kw", req.TargetLoadKw,
		"request_id", types.GetRequestID(r.Context()),
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: TargetLoadResponse{TargetLoadKw: req.TargetLoadKw}})
}
