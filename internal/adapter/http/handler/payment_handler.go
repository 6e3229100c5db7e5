package handler

import (
	"age-verification-gateway/internal/adapter/http/dto"
	"age-verification-gateway/internal/adapter/http/middleware"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/pkg/apperror"
	"age-verification-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler exposes top-up reconciliation to the company.
type PaymentHandler struct {
	reconciliationSvc ports.ReconciliationService
	walletSvc         ports.WalletService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(reconciliationSvc ports.ReconciliationService, walletSvc ports.WalletService) *PaymentHandler {
	return &PaymentHandler{reconciliationSvc: reconciliationSvc, walletSvc: walletSvc}
}

// Check handles POST /api/v1/payments/check.
func (h *PaymentHandler) Check(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}

	var req dto.PaymentCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	status, err := h.reconciliationSvc.CheckForCompany(c.Request.Context(), companyID, req.TransactionReference)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetAuditResource(c, req.TransactionReference)
	response.OK(c, dto.PaymentCheckResponse{Status: string(status)})
}

// GetTransaction handles GET /api/v1/payments/transactions/:id.
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "transaction id", c.Param("id"))
	if !ok {
		return
	}

	wt, err := h.walletSvc.GetTransaction(c.Request.Context(), companyID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(wt))
}
