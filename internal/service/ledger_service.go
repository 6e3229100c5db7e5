package service

import (
	"context"
	"errors"
	"fmt"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/platform/metrics"
	"age-verification-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerServiceImpl implements ports.LedgerService.
// Every balance change locks the company row and writes a ledger entry in the same transaction.
type LedgerServiceImpl struct {
	companyRepo      ports.CompanyRepository
	verificationRepo ports.VerificationRepository
	walletTxRepo     ports.WalletTransactionRepository
	ledgerRepo       ports.LedgerRepository
	transactor       ports.DBTransactor
	clock            ports.Clock
	retry            RetryPolicy
	metrics          *metrics.Metrics
	log              zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	companyRepo ports.CompanyRepository,
	verificationRepo ports.VerificationRepository,
	walletTxRepo ports.WalletTransactionRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	clock ports.Clock,
	retry RetryPolicy,
	m *metrics.Metrics,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		companyRepo:      companyRepo,
		verificationRepo: verificationRepo,
		walletTxRepo:     walletTxRepo,
		ledgerRepo:       ledgerRepo,
		transactor:       transactor,
		clock:            clock,
		retry:            retry,
		metrics:          m,
		log:              log,
	}
}

// Debit charges the company and inserts the PENDING verification atomically.
func (s *LedgerServiceImpl) Debit(ctx context.Context, req ports.DebitRequest) error {
	if !req.Amount.IsPositive() || !wholeCents(req.Amount) {
		return apperror.ErrInvalidAmount()
	}
	if req.Verification == nil {
		return apperror.Validation("verification is required")
	}

	_, err := withRetry(ctx, s.retry, s.log, "ledger debit", func() (struct{}, error) {
		return struct{}{}, s.debit(ctx, req)
	})
	return err
}

func (s *LedgerServiceImpl) debit(ctx context.Context, req ports.DebitRequest) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return s.storageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	company, err := s.companyRepo.GetByIDForUpdate(ctx, dbTx, req.CompanyID)
	if err != nil {
		return s.storageError("lock company", err)
	}
	if company == nil {
		return apperror.ErrNotFound("company")
	}
	if !company.CanAfford(req.Amount) {
		return apperror.ErrInsufficientCredit()
	}

	if err := s.companyRepo.UpdateBalance(ctx, dbTx, company.ID, company.Balance.Sub(req.Amount)); err != nil {
		return s.storageError("update balance", err)
	}
	if err := s.verificationRepo.Create(ctx, dbTx, req.Verification); err != nil {
		return s.storageError("create verification", err)
	}

	verificationID := req.Verification.ID
	entry := &domain.LedgerEntry{
		ID:             uuid.New(),
		CompanyID:      company.ID,
		EntryType:      domain.LedgerEntryDebit,
		Amount:         req.Amount,
		VerificationID: &verificationID,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		return s.storageError("create ledger entry", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return s.storageError("commit tx", err)
	}

	s.log.Info().
		Str("company_id", company.ID.String()).
		Str("verification_id", verificationID.String()).
		Str("amount", req.Amount.String()).
		Msg("wallet debited successfully")

	return nil
}

// Credit applies a matched top-up exactly once.
func (s *LedgerServiceImpl) Credit(ctx context.Context, req ports.CreditRequest) (bool, error) {
	if !req.Amount.IsPositive() || !wholeCents(req.Amount) {
		return false, apperror.ErrInvalidAmount()
	}
	return withRetry(ctx, s.retry, s.log, "ledger credit", func() (bool, error) {
		return s.credit(ctx, req)
	})
}

func (s *LedgerServiceImpl) credit(ctx context.Context, req ports.CreditRequest) (bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, s.storageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wt, err := s.walletTxRepo.GetByIDForUpdate(ctx, dbTx, req.WalletTransactionID)
	if err != nil {
		return false, s.storageError("lock wallet transaction", err)
	}
	if wt == nil {
		return false, apperror.ErrNotFound("wallet transaction")
	}
	if wt.CompanyID != req.CompanyID {
		return false, apperror.ErrNotFound("wallet transaction")
	}
	if wt.Status != domain.WalletTransactionPending {
		return false, nil
	}

	company, err := s.companyRepo.GetByIDForUpdate(ctx, dbTx, req.CompanyID)
	if err != nil {
		return false, s.storageError("lock company", err)
	}
	if company == nil {
		return false, apperror.ErrNotFound("company")
	}

	now := s.clock.Now()
	if err := s.walletTxRepo.MarkCompleted(ctx, dbTx, wt.ID, req.Amount, now); err != nil {
		return false, s.storageError("complete wallet transaction", err)
	}
	if err := s.companyRepo.UpdateBalance(ctx, dbTx, company.ID, company.Balance.Add(req.Amount)); err != nil {
		return false, s.storageError("update balance", err)
	}

	walletTxID := wt.ID
	entry := &domain.LedgerEntry{
		ID:                  uuid.New(),
		CompanyID:           company.ID,
		EntryType:           domain.LedgerEntryCredit,
		Amount:              req.Amount,
		WalletTransactionID: &walletTxID,
		CreatedAt:           now,
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		if errors.Is(err, ports.ErrDuplicateKey) {
			return false, nil
		}
		return false, s.storageError("create ledger entry", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, s.storageError("commit tx", err)
	}

	s.log.Info().
		Str("company_id", company.ID.String()).
		Str("wallet_transaction_id", walletTxID.String()).
		Str("amount", req.Amount.String()).
		Msg("wallet credited successfully")

	return true, nil
}

// Refund returns the debited price of a verification and marks it FAILED.
// A verification that is no longer refundable is left untouched.
func (s *LedgerServiceImpl) Refund(ctx context.Context, req ports.RefundRequest) (bool, error) {
	if !req.Amount.IsPositive() || !wholeCents(req.Amount) {
		return false, apperror.ErrInvalidAmount()
	}
	return withRetry(ctx, s.retry, s.log, "ledger refund", func() (bool, error) {
		return s.refund(ctx, req)
	})
}

func (s *LedgerServiceImpl) refund(ctx context.Context, req ports.RefundRequest) (bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, s.storageError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	v, err := s.verificationRepo.GetByIDForUpdate(ctx, dbTx, req.VerificationID)
	if err != nil {
		return false, s.storageError("lock verification", err)
	}
	if v == nil {
		return false, apperror.ErrNotFound("verification")
	}
	if v.CompanyID != req.CompanyID {
		return false, apperror.ErrNotFound("verification")
	}
	if !v.IsRefundable() {
		return false, nil
	}
	if !req.Amount.Equal(v.Price) {
		return false, apperror.Validation(fmt.Sprintf("refund amount %s does not match price %s", req.Amount, v.Price))
	}

	company, err := s.companyRepo.GetByIDForUpdate(ctx, dbTx, req.CompanyID)
	if err != nil {
		return false, s.storageError("lock company", err)
	}
	if company == nil {
		return false, apperror.ErrNotFound("company")
	}

	now := s.clock.Now()
	if err := s.verificationRepo.MarkRefunded(ctx, dbTx, v.ID, now); err != nil {
		return false, s.storageError("mark verification refunded", err)
	}
	if err := s.companyRepo.UpdateBalance(ctx, dbTx, company.ID, company.Balance.Add(v.Price)); err != nil {
		return false, s.storageError("update balance", err)
	}

	verificationID := v.ID
	entry := &domain.LedgerEntry{
		ID:             uuid.New(),
		CompanyID:      company.ID,
		EntryType:      domain.LedgerEntryRefund,
		Amount:         v.Price,
		VerificationID: &verificationID,
		CreatedAt:      now,
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		if errors.Is(err, ports.ErrDuplicateKey) {
			return false, nil
		}
		return false, s.storageError("create ledger entry", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return false, s.storageError("commit tx", err)
	}

	s.log.Info().
		Str("company_id", company.ID.String()).
		Str("verification_id", verificationID.String()).
		Str("amount", v.Price.String()).
		Msg("verification refunded successfully")

	return true, nil
}

// GetBalance reads the committed balance.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, companyID uuid.UUID) (decimal.Decimal, error) {
	company, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("get company: %w", err))
	}
	if company == nil {
		return decimal.Zero, apperror.ErrNotFound("company")
	}
	return company.Balance, nil
}

// storageError maps a lost lock race to CONC_001 and everything else to SYS_001.
func (s *LedgerServiceImpl) storageError(op string, err error) error {
	if errors.Is(err, ports.ErrLockConflict) {
		s.metrics.IncrementLedgerConflict()
		return apperror.ErrConcurrencyConflict(fmt.Errorf("%s: %w", op, err))
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}

// moneyScale matches the NUMERIC(14,2) money columns.
const moneyScale = 2

// wholeCents reports whether amount is representable in a money column without rounding.
func wholeCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(moneyScale))
}
