package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/platform/metrics"
	"age-verification-gateway/pkg/apperror"
	"age-verification-gateway/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// staleBatchSize caps how many stuck verifications one ExpireStale call settles.
const staleBatchSize = 500

// VerificationServiceImpl implements ports.VerificationService.
// Billing goes through the ledger; this service never touches balances directly.
type VerificationServiceImpl struct {
	shopRepo         ports.ShopRepository
	verificationRepo ports.VerificationRepository
	identityRepo     ports.IdentityRepository
	ledger           ports.LedgerService
	providers        ports.ProviderRegistry
	pricing          *PricingTable
	encSvc           ports.EncryptionService
	fingerprinter    ports.Fingerprinter
	notifier         ports.NotificationService
	clock            ports.Clock
	providerTimeout  time.Duration
	metrics          *metrics.Metrics
	log              zerolog.Logger
}

// NewVerificationService creates a new VerificationServiceImpl.
func NewVerificationService(
	shopRepo ports.ShopRepository,
	verificationRepo ports.VerificationRepository,
	identityRepo ports.IdentityRepository,
	ledger ports.LedgerService,
	providers ports.ProviderRegistry,
	pricing *PricingTable,
	encSvc ports.EncryptionService,
	fingerprinter ports.Fingerprinter,
	notifier ports.NotificationService,
	clock ports.Clock,
	providerTimeout time.Duration,
	m *metrics.Metrics,
	log zerolog.Logger,
) *VerificationServiceImpl {
	return &VerificationServiceImpl{
		shopRepo:         shopRepo,
		verificationRepo: verificationRepo,
		identityRepo:     identityRepo,
		ledger:           ledger,
		providers:        providers,
		pricing:          pricing,
		encSvc:           encSvc,
		fingerprinter:    fingerprinter,
		notifier:         notifier,
		clock:            clock,
		providerTimeout:  providerTimeout,
		metrics:          m,
		log:              log,
	}
}

// Initialize debits the price of method, runs the provider and settles the verification.
func (s *VerificationServiceImpl) Initialize(ctx context.Context, req ports.InitializeRequest) (*ports.InitializeResult, error) {
	shop, err := s.activeShop(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}

	method, err := domain.ParseVerificationMethod(req.Method)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if !method.IsIdentityMethod() || !shop.Allows(method) {
		return nil, apperror.ErrMethodNotAllowed(string(method))
	}

	price, ok := s.pricing.Price(method)
	if !ok {
		return nil, apperror.InternalError(fmt.Errorf("no price for method %s", method))
	}
	provider, err := s.providers.Get(method)
	if err != nil {
		return nil, apperror.ErrProvider(err)
	}

	v := s.newVerification(shop, method, price, req.RedirectURL)
	if err := s.ledger.Debit(ctx, ports.DebitRequest{CompanyID: shop.CompanyID, Amount: price, Verification: v}); err != nil {
		return nil, err
	}

	identifier, hasIdentifier := v.ID.String(), false
	if req.Identifier != nil && normalizeIdentifier(*req.Identifier) != "" {
		identifier, hasIdentifier = normalizeIdentifier(*req.Identifier), true
	}

	// Settlement must finish even if the client goes away.
	settleCtx := context.WithoutCancel(ctx)
	result := s.callProvider(settleCtx, provider, ports.ProviderRequest{
		VerificationID: v.ID,
		CompanyID:      v.CompanyID,
		Identifier:     identifier,
	})
	status, err := s.settle(settleCtx, v, result)
	if err != nil {
		return nil, err
	}

	if status == domain.VerificationStatusCompleted && hasIdentifier {
		s.rememberIdentity(settleCtx, v, identifier)
	}

	return &ports.InitializeResult{VerificationID: v.ID, Status: status}, nil
}

// Status is a pure read.
func (s *VerificationServiceImpl) Status(ctx context.Context, verificationID uuid.UUID) (*domain.Verification, error) {
	v, err := s.verificationRepo.GetByID(ctx, verificationID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get verification: %w", err))
	}
	if v == nil {
		return nil, apperror.ErrNotFound("verification")
	}
	return v, nil
}

// Revalidate charges the fixed revalidation price and answers from stored identities.
func (s *VerificationServiceImpl) Revalidate(ctx context.Context, req ports.RevalidateRequest) (*ports.RevalidateResult, error) {
	identifier := normalizeIdentifier(req.Identifier)
	if identifier == "" {
		return nil, apperror.Validation("identifier is required")
	}
	original, err := domain.ParseVerificationMethod(req.Method)
	if err != nil || !original.IsIdentityMethod() {
		return nil, apperror.Validation(fmt.Sprintf("invalid verification method %q", req.Method))
	}

	shop, err := s.activeShop(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}

	provider, err := s.providers.Get(domain.MethodRevalidate)
	if err != nil {
		return nil, apperror.ErrProvider(err)
	}

	price := s.pricing.Revalidate()
	v := s.newVerification(shop, domain.MethodRevalidate, price, nil)
	if err := s.ledger.Debit(ctx, ports.DebitRequest{CompanyID: shop.CompanyID, Amount: price, Verification: v}); err != nil {
		return nil, err
	}

	settleCtx := context.WithoutCancel(ctx)
	result := s.callProvider(settleCtx, provider, ports.ProviderRequest{
		VerificationID: v.ID,
		CompanyID:      v.CompanyID,
		Identifier:     identifier,
		OriginalMethod: original,
	})
	status, err := s.settle(settleCtx, v, result)
	if err != nil {
		return nil, err
	}

	return &ports.RevalidateResult{
		Success:        true,
		VerificationID: v.ID,
		IsVerified:     status == domain.VerificationStatusCompleted,
	}, nil
}

// ExpireStale fails and refunds verifications still PENDING after olderThan.
func (s *VerificationServiceImpl) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, apperror.Validation("expiry age must be positive")
	}

	cutoff := s.clock.Now().Add(-olderThan)
	stale, err := s.verificationRepo.ListStalePending(ctx, cutoff, staleBatchSize)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list stale verifications: %w", err))
	}

	refunded := 0
	for i := range stale {
		v := &stale[i]
		ok, err := s.ledger.Refund(ctx, ports.RefundRequest{CompanyID: v.CompanyID, VerificationID: v.ID, Amount: v.Price})
		if err != nil {
			s.log.Error().Err(err).Str("verification_id", v.ID.String()).Msg("failed to refund stale verification")
			continue
		}
		if !ok {
			continue
		}
		refunded++
		s.metrics.IncrementRefund(string(v.Method))
		s.metrics.ObserveVerification(string(v.Method), "expired")
		s.notify(ctx, v, domain.VerificationStatusFailed, domain.VerificationResultFailure)
		s.log.Warn().Str("verification_id", v.ID.String()).Str("company_id", v.CompanyID.String()).Msg("stale verification refunded")
	}
	return refunded, nil
}

func (s *VerificationServiceImpl) activeShop(ctx context.Context, shopID uuid.UUID) (*domain.Shop, error) {
	shop, err := s.shopRepo.GetByID(ctx, shopID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get shop: %w", err))
	}
	if shop == nil {
		return nil, apperror.ErrNotFound("shop")
	}
	if !shop.IsActive() {
		return nil, apperror.ErrShopInactive()
	}
	return shop, nil
}

func (s *VerificationServiceImpl) newVerification(shop *domain.Shop, method domain.VerificationMethod, price decimal.Decimal, redirectURL *string) *domain.Verification {
	return &domain.Verification{
		ID:          uuid.New(),
		ShopID:      shop.ID,
		CompanyID:   shop.CompanyID,
		Method:      method,
		Status:      domain.VerificationStatusPending,
		Price:       price,
		RedirectURL: redirectURL,
		CreatedAt:   s.clock.Now(),
	}
}

// callProvider runs one provider call under the configured timeout.
// Errors and timeouts collapse to FAILURE.
func (s *VerificationServiceImpl) callProvider(ctx context.Context, provider ports.VerificationProvider, req ports.ProviderRequest) domain.VerificationResult {
	callCtx := ctx
	if s.providerTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.providerTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := provider.Submit(callCtx, req)
	s.metrics.ObserveProviderLatency(string(provider.Method()), time.Since(start))

	if err != nil {
		s.log.Warn().Err(err).
			Str("verification_id", req.VerificationID.String()).
			Str("method", string(provider.Method())).
			Str("identifier", logger.MaskIdentifier(req.Identifier)).
			Msg("verification provider failed")
		return domain.VerificationResultFailure
	}
	return result
}

// settle moves the verification to its terminal state. FAILURE refunds the debit.
// When another path settled it first, the stored state wins.
func (s *VerificationServiceImpl) settle(ctx context.Context, v *domain.Verification, result domain.VerificationResult) (domain.VerificationStatus, error) {
	if result == domain.VerificationResultSuccess {
		ok, err := s.verificationRepo.Complete(ctx, v.ID, s.clock.Now())
		if err != nil {
			return "", apperror.InternalError(fmt.Errorf("complete verification: %w", err))
		}
		if !ok {
			return s.currentStatus(ctx, v.ID)
		}
		s.metrics.ObserveVerification(string(v.Method), "success")
		s.notify(ctx, v, domain.VerificationStatusCompleted, domain.VerificationResultSuccess)
		s.log.Info().Str("verification_id", v.ID.String()).Str("method", string(v.Method)).Msg("verification completed successfully")
		return domain.VerificationStatusCompleted, nil
	}

	refunded, err := s.ledger.Refund(ctx, ports.RefundRequest{CompanyID: v.CompanyID, VerificationID: v.ID, Amount: v.Price})
	if err != nil {
		return "", err
	}
	if !refunded {
		return s.currentStatus(ctx, v.ID)
	}
	s.metrics.IncrementRefund(string(v.Method))
	s.metrics.ObserveVerification(string(v.Method), "failure")
	s.notify(ctx, v, domain.VerificationStatusFailed, domain.VerificationResultFailure)
	return domain.VerificationStatusFailed, nil
}

func (s *VerificationServiceImpl) currentStatus(ctx context.Context, id uuid.UUID) (domain.VerificationStatus, error) {
	current, err := s.Status(ctx, id)
	if err != nil {
		return "", err
	}
	return current.Status, nil
}

func (s *VerificationServiceImpl) notify(ctx context.Context, v *domain.Verification, status domain.VerificationStatus, result domain.VerificationResult) {
	if s.notifier == nil {
		return
	}
	settled := *v
	now := s.clock.Now()
	settled.Status = status
	settled.Result = &result
	settled.CompletedAt = &now
	if status == domain.VerificationStatusFailed {
		settled.RefundedAt = &now
	}
	s.notifier.VerificationFinalized(ctx, &settled)
}

// rememberIdentity stores a successful identity so it can be revalidated later.
// Failures are logged; the verification itself already succeeded.
func (s *VerificationServiceImpl) rememberIdentity(ctx context.Context, v *domain.Verification, identifier string) {
	enc, err := s.encSvc.Encrypt(identifier)
	if err != nil {
		s.log.Error().Err(err).Str("verification_id", v.ID.String()).Msg("failed to encrypt identifier")
		return
	}
	identity := &domain.VerifiedIdentity{
		ID:             uuid.New(),
		CompanyID:      v.CompanyID,
		Method:         v.Method,
		Fingerprint:    s.fingerprinter.Fingerprint(identifier),
		IdentifierEnc:  enc,
		VerificationID: v.ID,
		VerifiedAt:     s.clock.Now(),
	}
	if err := s.identityRepo.Create(ctx, identity); err != nil {
		s.log.Error().Err(err).Str("verification_id", v.ID.String()).Msg("failed to store verified identity")
	}
}

func normalizeIdentifier(identifier string) string {
	return strings.TrimSpace(identifier)
}
