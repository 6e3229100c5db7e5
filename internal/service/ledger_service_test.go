package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/core/ports/mocks"
	"age-verification-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc              *LedgerServiceImpl
	companyRepo      *mocks.MockCompanyRepository
	verificationRepo *mocks.MockVerificationRepository
	walletTxRepo     *mocks.MockWalletTransactionRepository
	ledgerRepo       *mocks.MockLedgerRepository
	transactor       *mocks.MockDBTransactor
	clock            *fakeClock
}

func setupLedgerService(t *testing.T, retry RetryPolicy) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		companyRepo:      mocks.NewMockCompanyRepository(ctrl),
		verificationRepo: mocks.NewMockVerificationRepository(ctrl),
		walletTxRepo:     mocks.NewMockWalletTransactionRepository(ctrl),
		ledgerRepo:       mocks.NewMockLedgerRepository(ctrl),
		transactor:       mocks.NewMockDBTransactor(ctrl),
		clock:            newFakeClock(),
	}
	d.svc = NewLedgerService(
		d.companyRepo, d.verificationRepo, d.walletTxRepo, d.ledgerRepo,
		d.transactor, d.clock, retry, nil, newTestLogger(),
	)
	return d
}

func pendingVerification(companyID uuid.UUID, price int64) *domain.Verification {
	return &domain.Verification{
		ID:        uuid.New(),
		ShopID:    uuid.New(),
		CompanyID: companyID,
		Method:    domain.MethodBankID,
		Status:    domain.VerificationStatusPending,
		Price:     decimal.NewFromInt(price),
	}
}

// ==================== Debit ====================

func TestLedgerService_Debit_Success(t *testing.T) {
	d := setupLedgerService(t, noRetry)
	ctx := context.Background()
	tx := &mockTx{}
	companyID := uuid.New()
	v := pendingVerification(companyID, 20)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.companyRepo.EXPECT().GetByIDForUpdate(ctx, tx, companyID).Return(&domain.Company{ID: companyID, Balance: decimal.NewFromInt(50)}, nil)
	d.companyRepo.EXPECT().UpdateBalance(ctx, tx, companyID, decEq(30)).Return(nil)
	d.verificationRepo.EXPECT().Create(ctx, tx, v).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(func(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
		assert.Equal(t, domain.LedgerEntryDebit, e.EntryType)
		assert.True(t, decimal.NewFromInt(20).Equal(e.Amount))
		require.NotNil(t, e.VerificationID)
		assert.Equal(t, v.ID, *e.VerificationID)
		assert.Equal(t, d.clock.Now(), e.CreatedAt)
		return nil
	})

	err := d.svc.Debit(ctx, ports.DebitRequest{CompanyID: companyID, Amount: decimal.NewFromInt(20), Verification: v})
	require.NoError(t, err)
}

func TestLedgerService_Debit_ExactBalance(t *testing.T) {
	d := setupLedgerService(t, noRetry)
	ctx := context.Background()
	tx := &mockTx{}
	companyID := uuid.New()
	v := pendingVerification(companyID, 20)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.companyRepo.EXPECT().GetByIDForUpdate(ctx, tx, companyID).Return(&domain.Company{ID: companyID, Balance: decimal.NewFromInt(20)}, nil)
	d.companyRepo.EXPECT().UpdateBalance(ctx, tx, companyID, decEq(0)).Return(nil)
	d.verificationRepo.EXPECT().Create(ctx, tx, v).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	require.NoError(t, d.svc.Debit(ctx, ports.DebitRequest{CompanyID: companyID, Amount: decimal.NewFromInt(20), Verification: v}))
}

func TestLedgerService_Debit_InsufficientCredit(t *testing.T) {
	d := setupLedgerService(t, RetryPolicy{MaxAttempts: 3})
	ctx := context.Background()
	tx := &mockTx{}
	companyID := uuid.New()

	// Never retried: one Begin only.
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(1)
	d.companyRepo.EXPECT().GetByIDForUpdate(ctx, tx, companyID).Return(&domain.Company{ID: companyID, Balance: decimal.NewFromInt(19)}, nil)

	err := d.svc.Debit(ctx, ports.DebitRequest{CompanyID: companyID, Amount: decimal.NewFromInt(20), Verification: pendingVerification(companyID, 20)})
	assertAppError(t, err, apperror.CodeInsufficientCredit)
}

func TestLedgerService_Debit_InvalidInput(t *testing.T) {
	d := setupLedgerService(t, noRetry)

	err := d.svc.Debit(context.Background(), ports.DebitRequest{CompanyID: uuid.New(), Amount: decimal.Zero, Verification: &domain.Verification{}})
	assertAppError(t, err, apperror.CodeValidation)

	err = d.svc.Debit(context.Background(), ports.DebitRequest{CompanyID: uuid.New(), Amount: decimal.NewFromInt(1)})
	assertAppError(t, err, apperror.CodeValidation)
}

func TestLedgerService_RejectsSubCentAmounts(t *testing.T) {
	amount := decimal.RequireFromString("20.005")
	companyID := uuid.New()

	tests := []struct {
		name string
		call func(svc *LedgerServiceImpl) error
	}{
		{"debit", func(svc *LedgerServiceImpl) error {
			return svc.Debit(context.Background(), ports.DebitRequest{CompanyID: companyID, Amount: amount, Verification: &domain.Verification{}})
		}},
		{"credit", func(svc *LedgerServiceImpl) error {
			_, err := svc.Credit(context.Background(), ports.CreditRequest{CompanyID: companyID, Amount: amount, WalletTransactionID: uuid.New()})
			return err
		}},
		{"refund", func(svc *LedgerServiceImpl) error {
			_, err := svc.Refund(context.Background(), ports.RefundRequest{CompanyID: companyID, VerificationID: uuid.New(), Amount: amount})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupLedgerService(t, noRetry)
			assertAppError(t, tt.call(d.svc), apperror.CodeValidation)
		})
	}
}

func TestLedgerService_Debit_CompanyNotFound(t *testing.T) {
	d := setupLedgerService(t, noRetry)
	ctx := context.Background()
	tx := &mockTx{}
	companyID := uuid.New()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.companyRepo.EXPECT().GetByIDForUpdate(ctx, tx, companyID).Return(nil, nil)

	err := d.svc.Debit(ctx, ports.DebitRequest{CompanyID: companyID, Amount: decimal.NewFromInt(5), Verification: pendingVerification(companyID, 5)})
	assertAppError(t, err, apperror.CodeNotFound)
}

func TestLedgerService_Debit_CreateVerificationFails(t *testing.T) {
	d := setupLedgerService(t, noRetry)
	ctx := context.Background()
	tx := &mockTx{}
	companyID := uuid.New()
	v := pendingVerification(companyID, 5)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.companyRepo.EXPECT().GetByIDForUpdate(ctx, tx, companyID).Return(&domain.Company{ID: companyID, Balance: decimal.NewFromInt(10)}, nil)
	d.companyRepo.EXPECT().UpdateBalance(ctx, tx, companyID, decEq(5)).Return(nil)
	d.verificationRepo.EXPECT().Create(ctx, tx, v).Return(errors.New("disk full"))

	err := d.svc.Debit(ctx, ports.DebitRequest{CompanyID: companyID, Amount: decimal.NewFromInt(5), Verification: v})
	assertAppError(t, err, apperror.CodeInternal)
}

func TestLedgerService_Debit_RetriesLockConflict(t *testing.T) {
	d := setupLedgerService(t, RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond})
	ctx := context.Background()
	tx := &mockTx{}
	companyID := uuid.New()
	v := pendingVerification(companyID, 5)
	conflict := fmt.Errorf("lock company: %w", ports.ErrLockConflict)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	gomock.InOrder(
		d.companyRepo.EXPECT().GetByIDForUpdate(ctx, tx, companyID).Return(nil, conflict),
		d.companyRepo.EXPECT().GetByIDForUpdate(ctx, tx, companyID).Return(&domain.Company{ID: companyID, Balance: decimal.NewFromInt(10)}, nil),
	)
	d.companyRepo.EXPECT().UpdateBalance(ctx, tx, companyID, decEq(5)).Return(nil)
	d.verificationRepo.EXPECT().Create(ctx, tx, v).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	require.NoError(t, d.svc.Debit(ctx, ports.DebitRequest{CompanyID: companyID, Amount: decimal.NewFromInt(5), Verification: v}))
}

func TestLedgerService_Debit_ConflictExhausted(t *testing.T) {
	d := setupLedgerService(t, RetryPolicy{MaxAttempts: 2, Backoff: time.Millisecond})
	ctx := context.Background()
	tx := &mockTx{}
	companyID := uuid.New()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	d.companyRepo.EXPECT().GetByIDForUpdate(ctx, tx, companyID).Return(nil, ports.ErrLockConflict).Times(2)

	err := d.svc.Debit(ctx, ports.DebitRequest{CompanyID: companyID, Amount: decimal.NewFromInt(5), Verification: pendingVerification(companyID, 5)})
	assertAppError(t, err, apperror.CodeConcurrencyConflict)
}

// ==================== Credit ====================

func TestLedgerService_Credit_Success(t *testing.T) {
	d := setupLedgerService(t, noRetry)
	ctx := context.Background()
	tx := &mockTx{}
	companyID := uuid.New()
	wtID := uuid.New()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletTxRepo.EXPECT().GetByIDForUpdate(ctx, tx, wtID).Return(&domain.WalletTransaction{
		ID: wtID, CompanyID: companyID, Status: domain.WalletTransactionPending,
	}, nil)
	d.companyRepo.EXPECT().GetByIDForUpdate(ctx, tx, companyID).Return(&domain.Company{ID: companyID, Balance: decimal.NewFromInt(10)}, nil)
	d.walletTxRepo.EXPECT().MarkCompleted(ctx, tx, wtID, decEq(500), d.clock.Now()).Return(nil)
	d.companyRepo.EXPECT().UpdateBalance(ctx, tx, companyID, decEq(510)).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(func(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
		assert.Equal(t, domain.LedgerEntryCredit, e.EntryType)
		require.NotNil(t, e.WalletTransactionID)
		assert.Equal(t, wtID, *e.WalletTransactionID)
		assert.Nil(t, e.VerificationID)
		return nil
	})

	credited, err := d.svc.Credit(ctx, ports.CreditRequest{CompanyID: companyID, Amount: decimal.NewFromInt(500), WalletTransactionID: wtID})
	require.NoError(t, err)
	assert.True(t, credited)
}

func TestLedgerService_Credit_AlreadyCompleted(t *testing.T) {
	d := setupLedgerService(t, noRetry)
	ctx := context.Background()
	tx := &mockTx{}
	companyID := uuid.New()
	wtID := uuid.New()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletTxRepo.EXPECT().GetByIDForUpdate(ctx, tx, wtID).Return(&domain.WalletTransaction{
		ID: wtID, CompanyID: companyID, Status: domain.WalletTransactionCompleted,
	}, nil)

	credited, err := d.svc.Credit(ctx, ports.CreditRequest{CompanyID: companyID, Amount: decimal.NewFromInt(500), WalletTransactionID: wtID})
	require.NoError(t, err)
	assert.False(t, credited)
}

func TestLedgerService_Credit_OtherCompany(t *testing.T) {
	d := setupLedgerService(t, noRetry)
	ctx := context.Background()
	tx := &mockTx{}
	wtID := uuid.New()

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletTxRepo.EXPECT().GetByIDForUpdate(ctx, tx, wtID).Return(&domain.WalletTransaction{
		ID: wtID, CompanyID: uuid.New(), Status: domain.WalletTransactionPending,
	}, nil)

	_, err := d.svc.Credit(ctx, ports.CreditRequest{CompanyID: uuid.New(), Amount: decimal.NewFromInt(1), WalletTransactionID: wtID})
	assertAppError(t, err, apperror.CodeNotFound)
}

// ==================== Refund ====================

func TestLedgerService_Refund_Success(t *testing.T) {
	d := setupLedgerService(t, noRetry)
	ctx := context.Background()
	tx := &mockTx{}
	companyID := uuid.New()
	v := pendingVerification(companyID, 20)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.verificationRepo.EXPECT().GetByIDForUpdate(ctx, tx, v.ID).Return(v, nil)
	d.companyRepo.EXPECT().GetByIDForUpdate(ctx, tx, companyID).Return(&domain.Company{ID: companyID, Balance: decimal.Zero}, nil)
	d.verificationRepo.EXPECT().MarkRefunded(ctx, tx, v.ID, d.clock.Now()).Return(nil)
	d.companyRepo.EXPECT().UpdateBalance(ctx, tx, companyID, decEq(20)).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(func(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
		assert.Equal(t, domain.LedgerEntryRefund, e.EntryType)
		assert.True(t, decimal.NewFromInt(20).Equal(e.Amount))
		return nil
	})

	refunded, err := d.svc.Refund(ctx, ports.RefundRequest{CompanyID: companyID, VerificationID: v.ID, Amount: decimal.NewFromInt(20)})
	require.NoError(t, err)
	assert.True(t, refunded)
}

func TestLedgerService_Refund_AlreadySettled(t *testing.T) {
	now := time.Now()
	failure := domain.VerificationResultFailure

	tests := []struct {
		name   string
		mutate func(v *domain.Verification)
	}{
		{"already refunded", func(v *domain.Verification) {
			v.Status = domain.VerificationStatusFailed
			v.Result = &failure
			v.RefundedAt = &now
		}},
		{"completed", func(v *domain.Verification) { v.Status = domain.VerificationStatusCompleted }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupLedgerService(t, noRetry)
			ctx := context.Background()
			tx := &mockTx{}
			companyID := uuid.New()
			v := pendingVerification(companyID, 20)
			tt.mutate(v)

			d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
			d.verificationRepo.EXPECT().GetByIDForUpdate(ctx, tx, v.ID).Return(v, nil)

			refunded, err := d.svc.Refund(ctx, ports.RefundRequest{CompanyID: companyID, VerificationID: v.ID, Amount: decimal.NewFromInt(20)})
			require.NoError(t, err)
			assert.False(t, refunded)
		})
	}
}

func TestLedgerService_Refund_AmountMismatch(t *testing.T) {
	d := setupLedgerService(t, noRetry)
	ctx := context.Background()
	tx := &mockTx{}
	companyID := uuid.New()
	v := pendingVerification(companyID, 20)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.verificationRepo.EXPECT().GetByIDForUpdate(ctx, tx, v.ID).Return(v, nil)

	_, err := d.svc.Refund(ctx, ports.RefundRequest{CompanyID: companyID, VerificationID: v.ID, Amount: decimal.NewFromInt(25)})
	assertAppError(t, err, apperror.CodeValidation)
}

func TestLedgerService_Refund_DuplicateEntryIsNoop(t *testing.T) {
	d := setupLedgerService(t, noRetry)
	ctx := context.Background()
	tx := &mockTx{}
	companyID := uuid.New()
	v := pendingVerification(companyID, 20)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.verificationRepo.EXPECT().GetByIDForUpdate(ctx, tx, v.ID).Return(v, nil)
	d.companyRepo.EXPECT().GetByIDForUpdate(ctx, tx, companyID).Return(&domain.Company{ID: companyID}, nil)
	d.verificationRepo.EXPECT().MarkRefunded(ctx, tx, v.ID, gomock.Any()).Return(nil)
	d.companyRepo.EXPECT().UpdateBalance(ctx, tx, companyID, gomock.Any()).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(fmt.Errorf("insert: %w", ports.ErrDuplicateKey))

	refunded, err := d.svc.Refund(ctx, ports.RefundRequest{CompanyID: companyID, VerificationID: v.ID, Amount: decimal.NewFromInt(20)})
	require.NoError(t, err)
	assert.False(t, refunded)
}

// ==================== GetBalance ====================

func TestLedgerService_GetBalance(t *testing.T) {
	d := setupLedgerService(t, noRetry)
	companyID := uuid.New()

	d.companyRepo.EXPECT().GetByID(gomock.Any(), companyID).Return(&domain.Company{ID: companyID, Balance: decimal.RequireFromString("12.50")}, nil)

	balance, err := d.svc.GetBalance(context.Background(), companyID)
	require.NoError(t, err)
	assert.Equal(t, "12.5", balance.String())
}

func TestLedgerService_GetBalance_NotFound(t *testing.T) {
	d := setupLedgerService(t, noRetry)
	d.companyRepo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(nil, nil)

	_, err := d.svc.GetBalance(context.Background(), uuid.New())
	assertAppError(t, err, apperror.CodeNotFound)
}
