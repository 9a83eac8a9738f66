package db

import (
	"context"
	_ "embed"

	"github.com/shopspring/decimal"

	"microgrid/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the tables if they do not exist. The statements are
// sent without arguments so pgx uses the simple protocol and accepts the
// whole script at once.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply schema", err)
	}
	return nil
}

// kw rounds a measurement to the two decimal places the NUMERIC columns hold.
func kw(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
