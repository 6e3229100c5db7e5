package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxAuditResource carries the ID of a resource a handler created, for the audit entry.
const CtxAuditResource = "audit_resource_id"

// SetAuditResource names the resource the current request created or touched
// when the route itself carries no :id.
func SetAuditResource(c *gin.Context, id string) {
	c.Set(CtxAuditResource, id)
}

// AuditLog records successful write operations after the handler ran.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Actor:        domain.AuditActorOperator,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if id, ok := CompanyID(c); ok {
			entry.CompanyID = &id
		}
		if shop, ok := Shop(c); ok {
			entry.Actor = domain.AuditActorShop
			entry.ShopID = &shop.ID
			entry.CompanyID = &shop.CompanyID
		}
		if entry.ResourceID == "" {
			entry.ResourceID = c.GetString(CtxAuditResource)
		}

		details, _ := json.Marshal(map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		entry.Details = string(details)
		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/v1/verifications/initialize" && method == http.MethodPost:
		return domain.AuditActionInitialize, "verification"
	case route == "/api/v1/verifications/revalidate" && method == http.MethodPost:
		return domain.AuditActionRevalidate, "verification"
	case route == "/api/v1/wallet/topups" && method == http.MethodPost:
		return domain.AuditActionTopup, "wallet_transaction"
	case route == "/api/v1/payments/check" && method == http.MethodPost:
		return domain.AuditActionPaymentCheck, "wallet_transaction"
	case route == "/api/v1/shops/:id" && method == http.MethodPut:
		return domain.AuditActionUpdateShop, "shop"
	case route == "/api/v1/shops/:id/methods" && method == http.MethodPut:
		return domain.AuditActionUpdateMethods, "shop"
	case route == "/api/v1/shops/:id/webhook" && method == http.MethodPut:
		return domain.AuditActionUpdateWebhook, "shop"
	case route == "/api/v1/shops/:id/rotate-key" && method == http.MethodPost:
		return domain.AuditActionRotateKey, "shop"
	}
	return "", ""
}
