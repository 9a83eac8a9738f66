package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"microgrid/internal/types"
)

// SettingsRepository stores the operator-controlled target load.
type SettingsRepository struct {
	db DBTX
}

// NewSettingsRepository creates a new SettingsRepository backed by the given
// database connection.
func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// TargetLoad returns the configured target load in kW. A database with no
// settings row yields a not_found_setting error so callers can apply their
// default.
func (r *SettingsRepository) TargetLoad(ctx context.Context) (float64, error) {
	var target float64
	err := r.db.QueryRow(ctx,
		`SELECT target_load_kw FROM microgrid_settings WHERE id = 1`,
	).Scan(&target)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, types.NewAppError(types.ErrCodeNotFoundSetting, "target load has not been set", nil)
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to read target load", err)
	}
	return target, nil
}

// SetTargetLoad upserts the target load. Range checks happen at the HTTP
// boundary; the table constraint is the last line.
func (r *SettingsRepository) SetTargetLoad(ctx context.Context, targetKw float64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO microgrid_settings (id, target_load_kw, updated_at)
		 VALUES (1, $1, now())
		 ON CONFLICT (id) DO UPDATE
		 SET target_load_kw = EXCLUDED.target_load_kw, updated_at = now()`,
		kw(targetKw),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update target load", err)
	}
	return nil
}
