package handler

import (
	"strings"

	"age-verification-gateway/internal/adapter/http/dto"
	"age-verification-gateway/internal/adapter/http/middleware"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/pkg/apperror"
	"age-verification-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	maxIdempotencyKeyLen = 128
)

// WalletHandler handles wallet-related endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
	currency  string
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, currency string) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, currency: currency}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}

	balance, err := h.walletSvc.GetBalance(c.Request.Context(), companyID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletBalanceResponse{
		Balance:  balance,
		Currency: h.currency,
	})
}

// Topup handles POST /api/v1/wallet/topups.
func (h *WalletHandler) Topup(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}

	var req dto.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	idempKey := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if len(idempKey) > maxIdempotencyKeyLen {
		response.Error(c, apperror.Validation("Idempotency-Key is too long"))
		return
	}

	wt, err := h.walletSvc.RequestTopup(c.Request.Context(), ports.TopupRequest{
		CompanyID:      companyID,
		Amount:         req.Amount,
		IdempotencyKey: idempKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetAuditResource(c, wt.ID.String())
	response.Created(c, dto.TopupResponse{
		TransactionID: wt.ID.String(),
		Reference:     wt.ExternalReference,
		Amount:        wt.Amount,
		Status:        string(wt.Status),
	})
}
