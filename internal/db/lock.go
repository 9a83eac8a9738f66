package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"microgrid/internal/types"
)

// TickLockKey is the advisory lock key held for the duration of a tick.
const TickLockKey int64 = 0x6d6772_7469636b

const unlockTimeout = 5 * time.Second

// lockConn is the part of *pgxpool.Conn the tick lock uses.
type lockConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Release()
	Hijack() *pgx.Conn
}

// TickLock serializes dispatch ticks across processes with a session
// advisory lock. The lock lives on one pooled connection from acquire to
// release, so the SoC read and the save happen under it.
type TickLock struct {
	acquire func(ctx context.Context) (lockConn, error)
	key     int64
}

// NewTickLock creates a TickLock on pool.
func NewTickLock(pool *pgxpool.Pool) *TickLock {
	return &TickLock{
		acquire: func(ctx context.Context) (lockConn, error) { return pool.Acquire(ctx) },
		key:     TickLockKey,
	}
}

// TryAcquire takes the lock without waiting. When another process holds it
// acquired is false and release is nil.
func (l *TickLock) TryAcquire(ctx context.Context) (release func(context.Context), acquired bool, err error) {
	conn, err := l.acquire(ctx)
	if err != nil {
		return nil, false, types.NewAppError(types.ErrCodeInternalDB, "failed to acquire connection for tick lock", err)
	}

	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, types.NewAppError(types.ErrCodeInternalDB, "failed to take tick lock", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, unlockTimeout)
		defer cancel()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
			// The session still holds the lock; closing it is the only way
			// to let it go.
			if c := conn.Hijack(); c != nil {
				_ = c.Close(ctx)
			}
			return
		}
		conn.Release()
	}, true, nil
}
