package ports

import (
	"context"
	"errors"
	"time"

	"age-verification-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// WebhookSigner authenticates outgoing webhook bodies with a per-shop secret.
type WebhookSigner interface {
	Sign(secret string, timestamp int64, body []byte) string
	Verify(secret string, timestamp int64, body []byte, signature string) bool
}

// Fingerprinter derives a stable lookup key for an identifier without storing it in clear.
type Fingerprinter interface {
	Fingerprint(identifier string) string
}

// TokenService handles company operator JWTs.
type TokenService interface {
	Generate(companyID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	CompanyID uuid.UUID
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// LeaseLock is a best-effort distributed mutex with expiry.
type LeaseLock interface {
	// Acquire returns true if owner now holds the lease.
	Acquire(ctx context.Context, name string, owner string, ttl time.Duration) (bool, error)
	// Release drops the lease only if owner still holds it.
	Release(ctx context.Context, name string, owner string) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// --- Collaborators ---

// ProviderRequest is what a verification provider receives.
type ProviderRequest struct {
	VerificationID uuid.UUID
	CompanyID      uuid.UUID
	Identifier     string
	// OriginalMethod is set for revalidation: the method the identity was first verified with.
	OriginalMethod domain.VerificationMethod
}

// VerificationProvider performs one identity check.
// A returned error means the provider could not answer; it is treated as failure.
type VerificationProvider interface {
	Method() domain.VerificationMethod
	Submit(ctx context.Context, req ProviderRequest) (domain.VerificationResult, error)
}

// ProviderRegistry selects the provider for a method.
type ProviderRegistry interface {
	Get(method domain.VerificationMethod) (VerificationProvider, error)
}

// ErrFeedUnavailable is wrapped by BankFeed implementations on transport errors and 5xx.
var ErrFeedUnavailable = errors.New("bank feed unavailable")

// BankFeed queries the bank statement for incoming deposits.
type BankFeed interface {
	Query(ctx context.Context, reference string) ([]domain.BankDeposit, error)
}

// --- Service Ports (Business Logic) ---

// LedgerService owns every balance mutation.
type LedgerService interface {
	// Debit charges the company and inserts the PENDING verification in one transaction.
	Debit(ctx context.Context, req DebitRequest) error
	// Credit applies a matched top-up. Returns false if the transaction was no longer PENDING.
	Credit(ctx context.Context, req CreditRequest) (bool, error)
	// Refund returns a verification's price. Returns false if it was already refunded or settled.
	Refund(ctx context.Context, req RefundRequest) (bool, error)
	GetBalance(ctx context.Context, companyID uuid.UUID) (decimal.Decimal, error)
}

// DebitRequest holds validated input for a debit.
type DebitRequest struct {
	CompanyID    uuid.UUID
	Amount       decimal.Decimal
	Verification *domain.Verification
}

// CreditRequest holds validated input for a credit.
type CreditRequest struct {
	CompanyID           uuid.UUID
	Amount              decimal.Decimal
	WalletTransactionID uuid.UUID
}

// RefundRequest holds validated input for a refund.
type RefundRequest struct {
	CompanyID      uuid.UUID
	VerificationID uuid.UUID
	Amount         decimal.Decimal
}

// VerificationService orchestrates billed identity checks.
type VerificationService interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	Status(ctx context.Context, verificationID uuid.UUID) (*domain.Verification, error)
	Revalidate(ctx context.Context, req RevalidateRequest) (*RevalidateResult, error)
	// ExpireStale fails and refunds verifications left PENDING longer than olderThan.
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// InitializeRequest holds input for starting a verification.
type InitializeRequest struct {
	ShopID      uuid.UUID
	Method      string
	RedirectURL *string
	Identifier  *string
}

// InitializeResult is returned once the verification has been settled.
type InitializeResult struct {
	VerificationID uuid.UUID
	Status         domain.VerificationStatus
}

// RevalidateRequest holds input for a revalidation.
type RevalidateRequest struct {
	ShopID     uuid.UUID
	Identifier string
	Method     string
}

// RevalidateResult reports whether the call went through and whether the identity is known.
type RevalidateResult struct {
	Success        bool
	VerificationID uuid.UUID
	IsVerified     bool
}

// ReconciliationService matches pending top-ups against the bank feed.
type ReconciliationService interface {
	Check(ctx context.Context, reference string) (domain.WalletTransactionStatus, error)
	// CheckForCompany is Check restricted to the company's own top-ups.
	CheckForCompany(ctx context.Context, companyID uuid.UUID, reference string) (domain.WalletTransactionStatus, error)
	CheckAll(ctx context.Context) (*CheckAllResult, error)
	// Expire fails PENDING top-ups older than olderThan.
	Expire(ctx context.Context, olderThan time.Duration) (int, error)
}

// CheckAllResult counts the outcome of one reconciliation sweep.
type CheckAllResult struct {
	Completed int
	Pending   int
	Failed    int // moved to FAILED by a concurrent expiry
	Errored   int
}

// WalletService handles top-up requests and balance reads.
type WalletService interface {
	RequestTopup(ctx context.Context, req TopupRequest) (*domain.WalletTransaction, error)
	GetTransaction(ctx context.Context, companyID uuid.UUID, id uuid.UUID) (*domain.WalletTransaction, error)
	GetBalance(ctx context.Context, companyID uuid.UUID) (decimal.Decimal, error)
}

// TopupRequest holds validated input for a wallet top-up.
type TopupRequest struct {
	CompanyID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string // optional
}

// ShopService manages shop configuration for the owning company.
type ShopService interface {
	Authenticate(ctx context.Context, apiKey string) (*domain.Shop, error)
	Get(ctx context.Context, companyID uuid.UUID, shopID uuid.UUID) (*domain.Shop, error)
	Update(ctx context.Context, companyID uuid.UUID, shopID uuid.UUID, req UpdateShopRequest) (*domain.Shop, error)
	UpdateMethods(ctx context.Context, companyID uuid.UUID, shopID uuid.UUID, methods []string) (*domain.Shop, error)
	UpdateWebhookURL(ctx context.Context, companyID uuid.UUID, shopID uuid.UUID, webhookURL *string) error
	RotateKey(ctx context.Context, companyID uuid.UUID, shopID uuid.UUID) (string, error)
}

// UpdateShopRequest holds optional shop attribute changes.
type UpdateShopRequest struct {
	Name   *string
	Active *bool
}

// ReportingService defines dashboard/reporting business logic.
type ReportingService interface {
	GetDashboardStats(ctx context.Context, companyID uuid.UUID, period string) (*VerificationStats, error)
	ListVerifications(ctx context.Context, params VerificationListParams) ([]domain.Verification, int64, error)
}

// NotificationService tells the shop that a verification was settled. Best effort.
type NotificationService interface {
	VerificationFinalized(ctx context.Context, verification *domain.Verification)
}

// AuditService records audited actions asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
