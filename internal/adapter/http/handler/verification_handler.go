package handler

import (
	"age-verification-gateway/internal/adapter/http/dto"
	"age-verification-gateway/internal/adapter/http/middleware"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/pkg/apperror"
	"age-verification-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// VerificationHandler serves the widget endpoints.
type VerificationHandler struct {
	verificationSvc ports.VerificationService
}

// NewVerificationHandler creates a new VerificationHandler.
func NewVerificationHandler(verificationSvc ports.VerificationService) *VerificationHandler {
	return &VerificationHandler{verificationSvc: verificationSvc}
}

// Initialize handles POST /api/v1/verifications/initialize.
func (h *VerificationHandler) Initialize(c *gin.Context) {
	var req dto.InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	shopID, ok := h.authorizedShop(c, req.ShopID)
	if !ok {
		return
	}

	result, err := h.verificationSvc.Initialize(c.Request.Context(), ports.InitializeRequest{
		ShopID:      shopID,
		Method:      req.VerificationMethod,
		RedirectURL: req.RedirectURL,
		Identifier:  req.Identifier,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetAuditResource(c, result.VerificationID.String())
	response.Created(c, dto.InitializeResponse{
		VerificationID: result.VerificationID.String(),
		Status:         string(result.Status),
	})
}

// Status handles GET /api/v1/verifications/status?verificationId=.
func (h *VerificationHandler) Status(c *gin.Context) {
	id, ok := uuidParam(c, "verificationId", c.Query("verificationId"))
	if !ok {
		return
	}

	v, err := h.verificationSvc.Status(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	// Another company's verification is reported as missing.
	if companyID, _ := middleware.CompanyID(c); v.CompanyID != companyID {
		response.Error(c, apperror.ErrNotFound("verification"))
		return
	}

	response.OK(c, dto.VerificationStatusResponse{
		VerificationID: v.ID.String(),
		Status:         string(v.Status),
		Result:         resultString(v.Result),
		Method:         string(v.Method),
	})
}

// Revalidate handles POST /api/v1/verifications/revalidate.
func (h *VerificationHandler) Revalidate(c *gin.Context) {
	var req dto.RevalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	shopID, ok := h.authorizedShop(c, req.ShopID)
	if !ok {
		return
	}

	result, err := h.verificationSvc.Revalidate(c.Request.Context(), ports.RevalidateRequest{
		ShopID:     shopID,
		Identifier: req.Identifier,
		Method:     req.Method,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetAuditResource(c, result.VerificationID.String())
	response.OK(c, dto.RevalidateResponse{
		Success:        result.Success,
		VerificationID: result.VerificationID.String(),
		IsVerified:     result.IsVerified,
	})
}

// authorizedShop checks the body shopId against the shop the API key belongs to.
func (h *VerificationHandler) authorizedShop(c *gin.Context, rawShopID string) (uuid.UUID, bool) {
	shopID, ok := uuidParam(c, "shopId", rawShopID)
	if !ok {
		return uuid.Nil, false
	}
	shop, ok := middleware.Shop(c)
	if !ok || shop.ID != shopID {
		response.Error(c, apperror.ErrInvalidCredential())
		return uuid.Nil, false
	}
	return shopID, true
}
