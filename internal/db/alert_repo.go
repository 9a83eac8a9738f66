package db

import (
	"context"

	"microgrid/internal/types"
)

// AlertRepository reads the alerts raised by the latest tick.
type AlertRepository struct {
	db DBTX
}

// NewAlertRepository creates a new AlertRepository backed by the given
// database connection.
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

// ListActive returns up to limit active alerts, most urgent first.
func (r *AlertRepository) ListActive(ctx context.Context, limit int) ([]types.Alert, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, alert_type, category, title, description,
		        COALESCE(recommendation, ''), priority, raised_at, is_active
		 FROM energy_alerts
		 WHERE is_active
		 ORDER BY priority DESC, raised_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list active alerts", err)
	}
	defer rows.Close()

	alerts := []types.Alert{}
	for rows.Next() {
		var a types.Alert
		var alertType, category string
		if err := rows.Scan(
			&a.ID, &alertType, &category, &a.Title, &a.Description,
			&a.Recommendation, &a.Priority, &a.Timestamp, &a.Active,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert row", err)
		}
		a.Type = types.AlertType(alertType)
		a.Category = types.AlertCategory(category)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating alert rows", err)
	}
	return alerts, nil
}
