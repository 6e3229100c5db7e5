package memory

import (
	"context"
	"fmt"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IdentityRepo implements ports.IdentityRepository.
type IdentityRepo struct {
	store *Store
}

// NewIdentityRepo creates a new IdentityRepo.
func NewIdentityRepo(store *Store) *IdentityRepo {
	return &IdentityRepo{store: store}
}

func (r *IdentityRepo) Create(_ context.Context, identity *domain.VerifiedIdentity) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.identities = append(r.store.identities, *identity)
	return nil
}

// FindByFingerprint returns the most recently verified match.
func (r *IdentityRepo) FindByFingerprint(_ context.Context, companyID uuid.UUID, method domain.VerificationMethod, fingerprint string) (*domain.VerifiedIdentity, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var found *domain.VerifiedIdentity
	for i := range r.store.identities {
		vi := r.store.identities[i]
		if vi.CompanyID != companyID || vi.Method != method || vi.Fingerprint != fingerprint {
			continue
		}
		if found == nil || vi.VerifiedAt.After(found.VerifiedAt) {
			found = &vi
		}
	}
	return found, nil
}

var _ ports.IdempotencyRepository = (*IdempotencyRepo)(nil)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	store *Store
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(store *Store) *IdempotencyRepo {
	return &IdempotencyRepo{store: store}
}

func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.TopupReplay) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	err = mt.claim(ctx, "replay:"+entry.Key, func() bool {
		_, ok := r.store.idempotency[entry.Key]
		return ok
	})
	if err != nil {
		return fmt.Errorf("insert top-up replay: %w", err)
	}
	row := *entry
	mt.stage(func() { r.store.idempotency[row.Key] = row })
	return nil
}

func (r *IdempotencyRepo) Get(_ context.Context, key string) (*domain.TopupReplay, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entry, ok := r.store.idempotency[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	store *Store
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audit = append(r.store.audit, *entry)
	return nil
}

// Entries returns a copy of every audit record, oldest first.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]domain.AuditLog(nil), r.store.audit...)
}

// WebhookRepo implements ports.WebhookRepository.
type WebhookRepo struct {
	store *Store
}

// NewWebhookRepo creates a new WebhookRepo.
func NewWebhookRepo(store *Store) *WebhookRepo {
	return &WebhookRepo{store: store}
}

func (r *WebhookRepo) Create(_ context.Context, entry *domain.WebhookDeliveryLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.webhooks = append(r.store.webhooks, *entry)
	return nil
}

// Entries returns a copy of every delivery attempt, oldest first.
func (r *WebhookRepo) Entries() []domain.WebhookDeliveryLog {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]domain.WebhookDeliveryLog(nil), r.store.webhooks...)
}
