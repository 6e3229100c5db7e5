package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/core/ports/mocks"
	"age-verification-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestGetBalance_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(svc, "CZK")
	companyID := uuid.New()

	svc.EXPECT().GetBalance(gomock.Any(), companyID).Return(decimal.RequireFromString("250.50"), nil)

	w := serve(t, h.GetBalance, testRequest{method: http.MethodGet, target: "/api/v1/wallet/balance", companyID: &companyID})

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "250.5", data["balance"])
	assert.Equal(t, "CZK", data["currency"])
}

func TestGetBalance_NoCompany(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), "CZK")

	w := serve(t, h.GetBalance, testRequest{method: http.MethodGet, target: "/"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeInvalidToken, errorCode(t, w))
}

func TestTopup_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(svc, "CZK")
	companyID := uuid.New()
	wt := &domain.WalletTransaction{
		ID:                uuid.New(),
		CompanyID:         companyID,
		Amount:            decimal.NewFromInt(500),
		ExternalReference: "4827361950",
		Status:            domain.WalletTransactionPending,
		CreatedAt:         time.Now(),
	}

	svc.EXPECT().RequestTopup(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.TopupRequest) (*domain.WalletTransaction, error) {
			assert.Equal(t, companyID, req.CompanyID)
			assert.True(t, req.Amount.Equal(decimal.NewFromInt(500)))
			assert.Equal(t, "order-77", req.IdempotencyKey)
			return wt, nil
		})

	w := serve(t, h.Topup, testRequest{
		method:    http.MethodPost,
		target:    "/api/v1/wallet/topups",
		body:      `{"amount": 500}`,
		header:    map[string]string{HeaderIdempotencyKey: " order-77 "},
		companyID: &companyID,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, wt.ID.String(), data["transactionId"])
	assert.Equal(t, "4827361950", data["reference"])
	assert.Equal(t, "PENDING", data["status"])
}

func TestTopup_InvalidAmountFromService(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(svc, "CZK")
	companyID := uuid.New()

	svc.EXPECT().RequestTopup(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInvalidAmount())

	w := serve(t, h.Topup, testRequest{
		method: http.MethodPost, target: "/", body: `{"amount": "-5"}`, companyID: &companyID,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, errorCode(t, w))
}

func TestTopup_BadBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), "CZK")
	companyID := uuid.New()

	w := serve(t, h.Topup, testRequest{
		method: http.MethodPost, target: "/", body: `{"amount": "ten"}`, companyID: &companyID,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTopup_IdempotencyKeyTooLong(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), "CZK")
	companyID := uuid.New()

	w := serve(t, h.Topup, testRequest{
		method:    http.MethodPost,
		target:    "/",
		body:      `{"amount": 100}`,
		header:    map[string]string{HeaderIdempotencyKey: strings.Repeat("k", maxIdempotencyKeyLen+1)},
		companyID: &companyID,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Payments ---

func TestPaymentCheck_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	recon := mocks.NewMockReconciliationService(ctrl)
	h := NewPaymentHandler(recon, mocks.NewMockWalletService(ctrl))
	companyID := uuid.New()

	recon.EXPECT().CheckForCompany(gomock.Any(), companyID, "4827361950").Return(domain.WalletTransactionCompleted, nil)

	w := serve(t, h.Check, testRequest{
		method:    http.MethodPost,
		target:    "/api/v1/payments/check",
		body:      map[string]any{"transactionReference": "4827361950"},
		companyID: &companyID,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COMPLETED", decodeData(t, w)["status"])
}

func TestPaymentCheck_PrefixedReference(t *testing.T) {
	ctrl := gomock.NewController(t)
	recon := mocks.NewMockReconciliationService(ctrl)
	h := NewPaymentHandler(recon, mocks.NewMockWalletService(ctrl))
	companyID := uuid.New()

	recon.EXPECT().CheckForCompany(gomock.Any(), companyID, "VS123").Return(domain.WalletTransactionPending, nil)

	w := serve(t, h.Check, testRequest{
		method:    http.MethodPost,
		target:    "/api/v1/payments/check",
		body:      map[string]any{"transactionReference": "VS123"},
		companyID: &companyID,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PENDING", decodeData(t, w)["status"])
}

func TestPaymentCheck_InvalidReference(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewPaymentHandler(mocks.NewMockReconciliationService(ctrl), mocks.NewMockWalletService(ctrl))
	companyID := uuid.New()

	for _, body := range []string{`{}`, `{"transactionReference": "48 27; drop"}`} {
		w := serve(t, h.Check, testRequest{method: http.MethodPost, target: "/", body: body, companyID: &companyID})
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestPaymentCheck_FeedUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	recon := mocks.NewMockReconciliationService(ctrl)
	h := NewPaymentHandler(recon, mocks.NewMockWalletService(ctrl))
	companyID := uuid.New()

	recon.EXPECT().CheckForCompany(gomock.Any(), companyID, "123").
		Return(domain.WalletTransactionStatus(""), apperror.ErrFeedUnavailable(assert.AnError))

	w := serve(t, h.Check, testRequest{
		method: http.MethodPost, target: "/", body: map[string]any{"transactionReference": "123"}, companyID: &companyID,
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeFeedUnavailable, errorCode(t, w))
}

func TestGetTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	wallet := mocks.NewMockWalletService(ctrl)
	h := NewPaymentHandler(mocks.NewMockReconciliationService(ctrl), wallet)
	companyID := uuid.New()
	credited := decimal.NewFromInt(120)
	processed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	wt := &domain.WalletTransaction{
		ID:                uuid.New(),
		CompanyID:         companyID,
		Amount:            decimal.NewFromInt(100),
		ExternalReference: "1234567890",
		Status:            domain.WalletTransactionCompleted,
		CreditedAmount:    &credited,
		CreatedAt:         processed.Add(-time.Hour),
		ProcessedAt:       &processed,
	}
	wallet.EXPECT().GetTransaction(gomock.Any(), companyID, wt.ID).Return(wt, nil)

	w := serve(t, h.GetTransaction, testRequest{
		method:    http.MethodGet,
		target:    "/api/v1/payments/transactions/" + wt.ID.String(),
		params:    ginParams("id", wt.ID.String()),
		companyID: &companyID,
	})

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "120", data["creditedAmount"])
	assert.Equal(t, "2026-03-01T12:00:00Z", data["processedAt"])
}

func TestGetTransaction_BadID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewPaymentHandler(mocks.NewMockReconciliationService(ctrl), mocks.NewMockWalletService(ctrl))
	companyID := uuid.New()

	w := serve(t, h.GetTransaction, testRequest{
		method: http.MethodGet, target: "/", params: ginParams("id", "xyz"), companyID: &companyID,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
