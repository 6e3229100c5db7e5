package memory

import (
	"context"
	"fmt"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CompanyRepo implements ports.CompanyRepository.
type CompanyRepo struct {
	store *Store
}

// NewCompanyRepo creates a new CompanyRepo.
func NewCompanyRepo(store *Store) *CompanyRepo {
	return &CompanyRepo{store: store}
}

func (r *CompanyRepo) Create(_ context.Context, company *domain.Company) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.companies[company.ID]; ok {
		return fmt.Errorf("insert company: %w", ports.ErrDuplicateKey)
	}
	r.store.companies[company.ID] = *company
	return nil
}

func (r *CompanyRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Company, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	c, ok := r.store.companies[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *CompanyRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Company, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, companyKey(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *CompanyRepo) UpdateBalance(_ context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if balance.IsNegative() {
		return fmt.Errorf("update company balance: negative balance %s", balance)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.companies[id]; !ok {
		return fmt.Errorf("company not found: %s", id)
	}
	updatedAt := time.Now().UTC()
	mt.stage(func() {
		c := r.store.companies[id]
		c.Balance = balance
		c.UpdatedAt = updatedAt
		r.store.companies[id] = c
	})
	return nil
}
