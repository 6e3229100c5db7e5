package postgres

import (
	"context"
	"fmt"

	"age-verification-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create appends a ledger entry. The (verification_id, entry_type) and
// (wallet_transaction_id, entry_type) unique keys reject a second refund or credit.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, company_id, entry_type, amount, verification_id,
		wallet_transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		entry.ID, entry.CompanyID, entry.EntryType, entry.Amount, entry.VerificationID,
		entry.WalletTransactionID, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", mapError(err))
	}
	return nil
}

// ListByCompany returns a company's entries in the order they were written.
func (r *LedgerRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]domain.LedgerEntry, error) {
	query := `SELECT id, company_id, entry_type, amount, verification_id, wallet_transaction_id, created_at
		FROM ledger_entries WHERE company_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		if err := rows.Scan(
			&e.ID, &e.CompanyID, &e.EntryType, &e.Amount, &e.VerificationID,
			&e.WalletTransactionID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}
