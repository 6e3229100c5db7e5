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

// VerificationRepo implements ports.VerificationRepository.
type VerificationRepo struct {
	store *Store
}

// NewVerificationRepo creates a new VerificationRepo.
func NewVerificationRepo(store *Store) *VerificationRepo {
	return &VerificationRepo{store: store}
}

func (r *VerificationRepo) Create(ctx context.Context, tx pgx.Tx, v *domain.Verification) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	err = mt.claim(ctx, verificationKey(v.ID), func() bool {
		_, ok := r.store.verifications[v.ID]
		return ok
	})
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	row := *v
	mt.stage(func() { r.store.verifications[row.ID] = row })
	return nil
}

func (r *VerificationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Verification, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	v, ok := r.store.verifications[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *VerificationRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Verification, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, verificationKey(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Complete waits for any refund holding the row, then applies the guarded update.
func (r *VerificationRepo) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	key := verificationKey(id)
	if err := r.store.acquire(ctx, key); err != nil {
		return false, err
	}
	defer r.store.release(key)

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	v, ok := r.store.verifications[id]
	if !ok || !v.IsRefundable() {
		return false, nil
	}
	result := domain.VerificationResultSuccess
	v.Status = domain.VerificationStatusCompleted
	v.Result = &result
	v.CompletedAt = &completedAt
	r.store.verifications[id] = v
	return true, nil
}

func (r *VerificationRepo) MarkRefunded(_ context.Context, tx pgx.Tx, id uuid.UUID, refundedAt time.Time) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	v, ok := r.store.verifications[id]
	if !ok || v.RefundedAt != nil {
		return fmt.Errorf("verification not refundable: %s", id)
	}
	mt.stage(func() {
		v := r.store.verifications[id]
		result := domain.VerificationResultFailure
		v.Status = domain.VerificationStatusFailed
		v.Result = &result
		v.RefundedAt = &refundedAt
		v.CompletedAt = &refundedAt
		r.store.verifications[id] = v
	})
	return nil
}

func (r *VerificationRepo) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]domain.Verification, error) {
	items := r.filter(func(v *domain.Verification) bool {
		return v.Status == domain.VerificationStatusPending && v.CreatedAt.Before(createdBefore)
	})
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *VerificationRepo) List(_ context.Context, params ports.VerificationListParams) ([]domain.Verification, int64, error) {
	items := r.filter(func(v *domain.Verification) bool {
		if v.CompanyID != params.CompanyID {
			return false
		}
		if params.ShopID != nil && v.ShopID != *params.ShopID {
			return false
		}
		if params.Status != nil && v.Status != *params.Status {
			return false
		}
		if params.Method != nil && v.Method != *params.Method {
			return false
		}
		return true
	})
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	total := int64(len(items))
	offset := (params.Page - 1) * params.PageSize
	if offset < 0 || offset >= len(items) {
		return nil, total, nil
	}
	end := min(offset+params.PageSize, len(items))
	return items[offset:end], total, nil
}

func (r *VerificationRepo) GetStats(_ context.Context, companyID uuid.UUID, since *time.Time) (*ports.VerificationStats, error) {
	items := r.filter(func(v *domain.Verification) bool {
		return v.CompanyID == companyID && (since == nil || !v.CreatedAt.Before(*since))
	})

	stats := &ports.VerificationStats{Spent: decimal.Zero}
	for i := range items {
		v := &items[i]
		stats.Total++
		switch {
		case v.Status == domain.VerificationStatusPending:
			stats.Pending++
		case v.Succeeded():
			stats.Successful++
		case v.Status == domain.VerificationStatusFailed:
			stats.Failed++
		}
		if v.RefundedAt != nil {
			stats.Refunded++
		} else {
			stats.Spent = stats.Spent.Add(v.Price)
		}
	}
	return stats, nil
}

func (r *VerificationRepo) filter(keep func(*domain.Verification) bool) []domain.Verification {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var items []domain.Verification
	for _, v := range r.store.verifications {
		if keep(&v) {
			items = append(items, v)
		}
	}
	return items
}
