package postgres

import (
	"context"
	"errors"
	"fmt"

	"age-verification-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const companyColumns = `id, name, balance, created_at, updated_at`

// CompanyRepo implements ports.CompanyRepository.
type CompanyRepo struct {
	pool Pool
}

// NewCompanyRepo creates a new CompanyRepo.
func NewCompanyRepo(pool Pool) *CompanyRepo {
	return &CompanyRepo{pool: pool}
}

// Create inserts a new company.
func (r *CompanyRepo) Create(ctx context.Context, c *domain.Company) error {
	query := `INSERT INTO companies (` + companyColumns + `) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, c.ID, c.Name, c.Balance, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert company: %w", mapError(err))
	}
	return nil
}

// GetByID fetches a company by its UUID (committed read, no lock).
func (r *CompanyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	return scanCompany(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a company with a row lock held until tx ends.
// This MUST be called within a transaction.
func (r *CompanyRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1 FOR UPDATE`
	return scanCompany(tx.QueryRow(ctx, query, id))
}

// UpdateBalance writes a new balance within a transaction.
func (r *CompanyRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE companies SET balance = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, id)
	if err != nil {
		return fmt.Errorf("update company balance: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("company not found: %s", id)
	}
	return nil
}

func scanCompany(row pgx.Row) (*domain.Company, error) {
	c := &domain.Company{}
	err := row.Scan(&c.ID, &c.Name, &c.Balance, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan company: %w", mapError(err))
	}
	return c, nil
}
