package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var _ ports.WalletTransactionRepository = (*WalletTransactionRepo)(nil)

// WalletTransactionRepo implements ports.WalletTransactionRepository.
type WalletTransactionRepo struct {
	store *Store
}

// NewWalletTransactionRepo creates a new WalletTransactionRepo.
func NewWalletTransactionRepo(store *Store) *WalletTransactionRepo {
	return &WalletTransactionRepo{store: store}
}

func (r *WalletTransactionRepo) Create(ctx context.Context, tx pgx.Tx, wt *domain.WalletTransaction) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	ref := domain.NormalizeReference(wt.ExternalReference)
	err = mt.claim(ctx, "reference:"+ref, func() bool {
		_, ok := r.store.walletReferences[ref]
		return ok
	})
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	err = mt.claim(ctx, walletKey(wt.ID), func() bool {
		_, ok := r.store.walletTransactions[wt.ID]
		return ok
	})
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	row := *wt
	mt.stage(func() {
		r.store.walletTransactions[row.ID] = row
		r.store.walletReferences[ref] = row.ID
	})
	return nil
}

func (r *WalletTransactionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.WalletTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	wt, ok := r.store.walletTransactions[id]
	if !ok {
		return nil, nil
	}
	return &wt, nil
}

func (r *WalletTransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.WalletTransaction, error) {
	r.store.mu.Lock()
	id, ok := r.store.walletReferences[domain.NormalizeReference(reference)]
	r.store.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *WalletTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WalletTransaction, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, walletKey(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *WalletTransactionRepo) MarkCompleted(_ context.Context, tx pgx.Tx, id uuid.UUID, credited decimal.Decimal, processedAt time.Time) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	wt, ok := r.store.walletTransactions[id]
	if !ok || wt.Status != domain.WalletTransactionPending {
		return fmt.Errorf("wallet transaction not pending: %s", id)
	}
	mt.stage(func() {
		wt := r.store.walletTransactions[id]
		wt.Status = domain.WalletTransactionCompleted
		wt.CreditedAmount = &credited
		wt.ProcessedAt = &processedAt
		r.store.walletTransactions[id] = wt
	})
	return nil
}

// MarkFailedIfPending waits for a credit holding the row, then applies the guarded update.
func (r *WalletTransactionRepo) MarkFailedIfPending(ctx context.Context, id uuid.UUID, processedAt time.Time) (bool, error) {
	key := walletKey(id)
	if err := r.store.acquire(ctx, key); err != nil {
		return false, err
	}
	defer r.store.release(key)

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	wt, ok := r.store.walletTransactions[id]
	if !ok || wt.Status != domain.WalletTransactionPending {
		return false, nil
	}
	wt.Status = domain.WalletTransactionFailed
	wt.ProcessedAt = &processedAt
	r.store.walletTransactions[id] = wt
	return true, nil
}

func (r *WalletTransactionRepo) ListPending(_ context.Context, createdBefore *time.Time) ([]domain.WalletTransaction, error) {
	r.store.mu.Lock()
	var items []domain.WalletTransaction
	for _, wt := range r.store.walletTransactions {
		if wt.Status != domain.WalletTransactionPending {
			continue
		}
		if createdBefore != nil && !wt.CreatedAt.Before(*createdBefore) {
			continue
		}
		items = append(items, wt)
	}
	r.store.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}
