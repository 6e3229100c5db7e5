package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"age-verification-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletTransactionColumns = `id, company_id, amount, external_reference, status, credited_amount,
		created_at, processed_at`

// WalletTransactionRepo implements ports.WalletTransactionRepository.
type WalletTransactionRepo struct {
	pool Pool
}

// NewWalletTransactionRepo creates a new WalletTransactionRepo.
func NewWalletTransactionRepo(pool Pool) *WalletTransactionRepo {
	return &WalletTransactionRepo{pool: pool}
}

// Create inserts a top-up request. A taken reference surfaces as ports.ErrDuplicateKey.
func (r *WalletTransactionRepo) Create(ctx context.Context, tx pgx.Tx, wt *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (` + walletTransactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		wt.ID, wt.CompanyID, wt.Amount, wt.ExternalReference, wt.Status, wt.CreditedAmount,
		wt.CreatedAt, wt.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", mapError(err))
	}
	return nil
}

// GetByID fetches a wallet transaction by UUID.
func (r *WalletTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error) {
	query := `SELECT ` + walletTransactionColumns + ` FROM wallet_transactions WHERE id = $1`
	return scanWalletTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByReference fetches a wallet transaction by its normalized external reference.
func (r *WalletTransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.WalletTransaction, error) {
	query := `SELECT ` + walletTransactionColumns + ` FROM wallet_transactions WHERE external_reference = $1`
	return scanWalletTransaction(r.pool.QueryRow(ctx, query, domain.NormalizeReference(reference)))
}

// GetByIDForUpdate fetches a wallet transaction with a row lock.
func (r *WalletTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WalletTransaction, error) {
	query := `SELECT ` + walletTransactionColumns + ` FROM wallet_transactions WHERE id = $1 FOR UPDATE`
	return scanWalletTransaction(tx.QueryRow(ctx, query, id))
}

// MarkCompleted records the credited amount. The row must be locked by tx.
func (r *WalletTransactionRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, credited decimal.Decimal, processedAt time.Time) error {
	query := `UPDATE wallet_transactions SET status = 'COMPLETED', credited_amount = $1, processed_at = $2
		WHERE id = $3 AND status = 'PENDING'`

	tag, err := tx.Exec(ctx, query, credited, processedAt, id)
	if err != nil {
		return fmt.Errorf("complete wallet transaction: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet transaction not pending: %s", id)
	}
	return nil
}

// MarkFailedIfPending expires a top-up that never received funds.
func (r *WalletTransactionRepo) MarkFailedIfPending(ctx context.Context, id uuid.UUID, processedAt time.Time) (bool, error) {
	query := `UPDATE wallet_transactions SET status = 'FAILED', processed_at = $1
		WHERE id = $2 AND status = 'PENDING'`

	tag, err := r.pool.Exec(ctx, query, processedAt, id)
	if err != nil {
		return false, fmt.Errorf("fail wallet transaction: %w", mapError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// ListPending returns pending top-ups oldest first.
func (r *WalletTransactionRepo) ListPending(ctx context.Context, createdBefore *time.Time) ([]domain.WalletTransaction, error) {
	query := `SELECT ` + walletTransactionColumns + ` FROM wallet_transactions WHERE status = 'PENDING'`
	var args []any
	if createdBefore != nil {
		query += ` AND created_at < $1`
		args = append(args, *createdBefore)
	}
	query += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending wallet transactions: %w", err)
	}
	defer rows.Close()

	var items []domain.WalletTransaction
	for rows.Next() {
		wt := domain.WalletTransaction{}
		if err := rows.Scan(
			&wt.ID, &wt.CompanyID, &wt.Amount, &wt.ExternalReference, &wt.Status, &wt.CreditedAmount,
			&wt.CreatedAt, &wt.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan wallet transaction row: %w", err)
		}
		items = append(items, wt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet transaction rows: %w", err)
	}
	return items, nil
}

func scanWalletTransaction(row pgx.Row) (*domain.WalletTransaction, error) {
	wt := &domain.WalletTransaction{}
	err := row.Scan(
		&wt.ID, &wt.CompanyID, &wt.Amount, &wt.ExternalReference, &wt.Status, &wt.CreditedAmount,
		&wt.CreatedAt, &wt.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet transaction: %w", mapError(err))
	}
	return wt, nil
}
