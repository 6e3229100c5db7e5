package postgres

import (
	"context"
	"errors"
	"fmt"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo stores top-up replays in topup_replays.
type IdempotencyRepo struct {
	pool Pool
}

func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create must run in the transaction that inserts the wallet transaction.
// A key that already exists yields ports.ErrDuplicateKey without aborting tx.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, replay *domain.TopupReplay) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO topup_replays (key, company_id, wallet_transaction_id, response, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING`,
		replay.Key, replay.CompanyID, replay.WalletTransactionID, replay.Response, replay.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert top-up replay: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("top-up replay %q: %w", replay.Key, ports.ErrDuplicateKey)
	}
	return nil
}

// Get returns nil, nil when no replay is stored for key.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.TopupReplay, error) {
	var replay domain.TopupReplay
	err := r.pool.QueryRow(ctx, `
		SELECT key, company_id, wallet_transaction_id, response, created_at
		FROM topup_replays
		WHERE key = $1`, key,
	).Scan(&replay.Key, &replay.CompanyID, &replay.WalletTransactionID, &replay.Response, &replay.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get top-up replay: %w", err)
	}
	return &replay, nil
}
