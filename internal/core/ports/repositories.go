package ports

import (
	"context"
	"errors"
	"time"

	"age-verification-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Storage adapters wrap these so services can branch without knowing the backend.
var (
	// ErrDuplicateKey is returned when a unique constraint rejects an insert.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrLockConflict is returned when a row lock could not be taken in time
	// or the transaction lost a serialization race.
	ErrLockConflict = errors.New("lock conflict")
)

// CompanyRepository defines persistence operations for companies and their balance.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type CompanyRepository interface {
	Create(ctx context.Context, company *domain.Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Company, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error
}

// ShopRepository defines persistence operations for shops.
type ShopRepository interface {
	Create(ctx context.Context, shop *domain.Shop) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Shop, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Shop, error)
	Update(ctx context.Context, shop *domain.Shop) error
}

// VerificationRepository defines persistence operations for verifications.
type VerificationRepository interface {
	Create(ctx context.Context, tx pgx.Tx, verification *domain.Verification) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Verification, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Verification, error)
	// Complete moves a PENDING, unrefunded verification to COMPLETED/SUCCESS.
	// Returns false when the row was no longer pending.
	Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error)
	// MarkRefunded sets FAILED/FAILURE and refunded_at. The row must be locked by tx.
	MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID, refundedAt time.Time) error
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Verification, error)
	// Reporting queries
	List(ctx context.Context, params VerificationListParams) ([]domain.Verification, int64, error)
	GetStats(ctx context.Context, companyID uuid.UUID, since *time.Time) (*VerificationStats, error)
}

// VerificationListParams holds filter + pagination for listing verifications.
type VerificationListParams struct {
	CompanyID uuid.UUID
	ShopID    *uuid.UUID
	Status    *domain.VerificationStatus
	Method    *domain.VerificationMethod
	Page      int
	PageSize  int
}

// VerificationStats holds aggregated statistics for the dashboard.
type VerificationStats struct {
	Total      int64
	Pending    int64
	Successful int64
	Failed     int64
	Refunded   int64
	Spent      decimal.Decimal // sum of prices of non-refunded verifications
}

// WalletTransactionRepository defines persistence operations for top-up requests.
type WalletTransactionRepository interface {
	// Create returns an error wrapping ErrDuplicateKey when the reference is taken.
	Create(ctx context.Context, tx pgx.Tx, wt *domain.WalletTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error)
	GetByReference(ctx context.Context, reference string) (*domain.WalletTransaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WalletTransaction, error)
	MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, credited decimal.Decimal, processedAt time.Time) error
	// MarkFailedIfPending is a guarded PENDING -> FAILED update. Returns false if already terminal.
	MarkFailedIfPending(ctx context.Context, id uuid.UUID, processedAt time.Time) (bool, error)
	// ListPending returns PENDING transactions, optionally only those created before the cutoff.
	ListPending(ctx context.Context, createdBefore *time.Time) ([]domain.WalletTransaction, error)
}

// LedgerRepository persists immutable ledger entries.
type LedgerRepository interface {
	// Create returns an error wrapping ErrDuplicateKey when the entry already exists
	// for the same verification or wallet transaction.
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]domain.LedgerEntry, error)
}

// IdentityRepository stores identities that passed a full verification.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.VerifiedIdentity) error
	FindByFingerprint(ctx context.Context, companyID uuid.UUID, method domain.VerificationMethod, fingerprint string) (*domain.VerifiedIdentity, error)
}

// IdempotencyRepository is the durable store behind IdempotencyCache.
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, replay *domain.TopupReplay) error
	Get(ctx context.Context, key string) (*domain.TopupReplay, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// WebhookRepository persists webhook delivery attempts.
type WebhookRepository interface {
	Create(ctx context.Context, log *domain.WebhookDeliveryLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
