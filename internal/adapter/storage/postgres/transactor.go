package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor using pgxpool.Pool.
type Transactor struct {
	pool        Pool
	lockTimeout time.Duration
}

// NewTransactor creates a new Transactor wrapping the connection pool.
// A positive lockTimeout bounds how long a FOR UPDATE waits before failing with 55P03.
func NewTransactor(pool Pool, lockTimeout time.Duration) *Transactor {
	return &Transactor{pool: pool, lockTimeout: lockTimeout}
}

// Begin starts a new database transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	if t.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}

	return &conflictAwareTx{Tx: tx}, nil
}

// conflictAwareTx maps serialization failures surfacing at commit time.
type conflictAwareTx struct {
	pgx.Tx
}

func (t *conflictAwareTx) Commit(ctx context.Context) error {
	if err := t.Tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}
