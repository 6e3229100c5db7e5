package memory

import (
	"context"
	"fmt"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var _ ports.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	store *Store
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(store *Store) *LedgerRepo {
	return &LedgerRepo{store: store}
}

func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	key := ledgerKey(entry)
	if key != "" {
		err := mt.claim(ctx, "ledger:"+key, func() bool {
			_, ok := r.store.ledgerKeys[key]
			return ok
		})
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}
	row := *entry
	mt.stage(func() {
		r.store.ledger = append(r.store.ledger, row)
		if key != "" {
			r.store.ledgerKeys[key] = struct{}{}
		}
	})
	return nil
}

func (r *LedgerRepo) ListByCompany(_ context.Context, companyID uuid.UUID) ([]domain.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var entries []domain.LedgerEntry
	for _, e := range r.store.ledger {
		if e.CompanyID == companyID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// ledgerKey mirrors the (reference, entry_type) unique constraints.
func ledgerKey(e *domain.LedgerEntry) string {
	switch {
	case e.VerificationID != nil:
		return "v:" + e.VerificationID.String() + ":" + string(e.EntryType)
	case e.WalletTransactionID != nil:
		return "w:" + e.WalletTransactionID.String() + ":" + string(e.EntryType)
	}
	return ""
}
