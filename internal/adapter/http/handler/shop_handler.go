package handler

import (
	"net/http"

	"age-verification-gateway/internal/adapter/http/dto"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/pkg/apperror"
	"age-verification-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ShopHandler lets a company manage its shops.
type ShopHandler struct {
	shopSvc ports.ShopService
}

// NewShopHandler creates a new ShopHandler.
func NewShopHandler(shopSvc ports.ShopService) *ShopHandler {
	return &ShopHandler{shopSvc: shopSvc}
}

func (h *ShopHandler) target(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	shopID, ok := uuidParam(c, "shop id", c.Param("id"))
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return companyID, shopID, true
}

// Get handles GET /api/v1/shops/:id.
func (h *ShopHandler) Get(c *gin.Context) {
	companyID, shopID, ok := h.target(c)
	if !ok {
		return
	}

	shop, err := h.shopSvc.Get(c.Request.Context(), companyID, shopID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toShopResponse(shop))
}

// Update handles PUT /api/v1/shops/:id.
func (h *ShopHandler) Update(c *gin.Context) {
	companyID, shopID, ok := h.target(c)
	if !ok {
		return
	}

	var req dto.UpdateShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	shop, err := h.shopSvc.Update(c.Request.Context(), companyID, shopID, ports.UpdateShopRequest{
		Name:   req.Name,
		Active: req.Active,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toShopResponse(shop))
}

// UpdateMethods handles PUT /api/v1/shops/:id/methods.
func (h *ShopHandler) UpdateMethods(c *gin.Context) {
	companyID, shopID, ok := h.target(c)
	if !ok {
		return
	}

	var req dto.UpdateMethodsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	shop, err := h.shopSvc.UpdateMethods(c.Request.Context(), companyID, shopID, req.Methods)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toShopResponse(shop))
}

// UpdateWebhook handles PUT /api/v1/shops/:id/webhook.
func (h *ShopHandler) UpdateWebhook(c *gin.Context) {
	companyID, shopID, ok := h.target(c)
	if !ok {
		return
	}

	var req dto.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if req.WebhookURL != nil && *req.WebhookURL == "" {
		req.WebhookURL = nil
	}

	if err := h.shopSvc.UpdateWebhookURL(c.Request.Context(), companyID, shopID, req.WebhookURL); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RotateKey handles POST /api/v1/shops/:id/rotate-key.
func (h *ShopHandler) RotateKey(c *gin.Context) {
	companyID, shopID, ok := h.target(c)
	if !ok {
		return
	}

	key, err := h.shopSvc.RotateKey(c.Request.Context(), companyID, shopID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.RotateKeyResponse{APIKey: key})
}
