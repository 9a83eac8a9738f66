package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"microgrid/internal/types"
)

// TickRepository persists dispatch results and the alerts they raised.
type TickRepository struct {
	db Store
}

// NewTickRepository creates a new TickRepository. Save needs transactions,
// so it takes a Store rather than a bare DBTX.
func NewTickRepository(db Store) *TickRepository {
	return &TickRepository{db: db}
}

// ArchivedTick is a stored tick in its serialized form, as read by the
// retention job.
type ArchivedTick struct {
	ID     string          `json:"id"`
	TickAt time.Time       `json:"tick_at"`
	Result json.RawMessage `json:"result"`
}

// Save stores res and replaces the active alert set with res.Alerts in one
// transaction. IDs are assigned to the tick and its alerts in place, so the
// caller sees the identifiers that were written. Saving a tick whose ID is
// already stored is a no-op, which makes retries safe.
func (r *TickRepository) Save(ctx context.Context, res *types.DispatchResult) error {
	if res.TickID == "" {
		res.TickID = uuid.NewString()
	}
	for i := range res.Alerts {
		if res.Alerts[i].ID == "" {
			res.Alerts[i].ID = uuid.NewString()
		}
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode dispatch result", err)
	}

	tx, err := r.db.StartTx(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin tick transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`INSERT INTO dispatch_ticks (
			id, tick_at, soc_percent, target_load_kw, renewable_kw,
			grid_import_kw, grid_export_kw, result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		res.TickID,
		res.Timestamp,
		res.Battery.SoCPercent,
		kw(res.Load.TargetLoadKw),
		kw(res.Generation.RenewableKw()),
		kw(res.Grid.ImportKw),
		kw(res.Grid.ExportKw),
		payload,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert tick", err)
	}
	if tag.RowsAffected() == 0 {
		// Already stored by an earlier attempt whose commit acknowledgement
		// was lost; its alerts were written in the same transaction.
		return nil
	}

	// The previous tick's alerts are superseded wholesale.
	if _, err := tx.Exec(ctx, `UPDATE energy_alerts SET is_active = false WHERE is_active`); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to deactivate alerts", err)
	}

	for _, a := range res.Alerts {
		var recommendation *string
		if a.Recommendation != "" {
			recommendation = &a.Recommendation
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO energy_alerts (
				id, tick_id, alert_type, category, title, description,
				recommendation, priority, raised_at, is_active
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true)`,
			a.ID, res.TickID, string(a.Type), string(a.Category), a.Title, a.Description,
			recommendation, a.Priority, a.Timestamp,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to insert alert", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit tick", err)
	}
	return nil
}

// LatestSoC returns the state of charge recorded by the most recent tick.
func (r *TickRepository) LatestSoC(ctx context.Context) (float64, error) {
	var soc float64
	err := r.db.QueryRow(ctx,
		`SELECT soc_percent FROM dispatch_ticks ORDER BY tick_at DESC LIMIT 1`,
	).Scan(&soc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, types.NewAppError(types.ErrCodeNotFoundTick, "no ticks recorded", nil)
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to read latest state of charge", err)
	}
	return soc, nil
}

// Latest returns the most recent dispatch result.
func (r *TickRepository) Latest(ctx context.Context) (*types.DispatchResult, error) {
	var payload []byte
	err := r.db.QueryRow(ctx,
		`SELECT result FROM dispatch_ticks ORDER BY tick_at DESC LIMIT 1`,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundTick, "no ticks recorded", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read latest tick", err)
	}

	var res types.DispatchResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "stored tick is not valid JSON", err)
	}
	return &res, nil
}

// Recent returns up to limit results, newest first.
func (r *TickRepository) Recent(ctx context.Context, limit int) ([]types.DispatchResult, error) {
	rows, err := r.db.Query(ctx,
		`SELECT result FROM dispatch_ticks ORDER BY tick_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list recent ticks", err)
	}
	defer rows.Close()

	var out []types.DispatchResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan tick row", err)
		}
		var res types.DispatchResult
		if err := json.Unmarshal(payload, &res); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "stored tick is not valid JSON", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating tick rows", err)
	}
	return out, nil
}

// ListOlderThan returns up to limit ticks recorded before cutoff, oldest
// first.
func (r *TickRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]ArchivedTick, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, tick_at, result FROM dispatch_ticks
		 WHERE tick_at < $1
		 ORDER BY tick_at ASC
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list expired ticks", err)
	}
	defer rows.Close()

	var out []ArchivedTick
	for rows.Next() {
		var t ArchivedTick
		var payload []byte
		if err := rows.Scan(&t.ID, &t.TickAt, &payload); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan expired tick", err)
		}
		t.Result = json.RawMessage(payload)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating expired ticks", err)
	}
	return out, nil
}

// DeleteTicks removes the given ticks. Their alerts go with them through
// the foreign key cascade.
func (r *TickRepository) DeleteTicks(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM dispatch_ticks WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete archived ticks", err)
	}
	return tag.RowsAffected(), nil
}
