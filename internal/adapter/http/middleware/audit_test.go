package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_RotateKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	companyID := uuid.New()
	shopID := uuid.NewString()

	var logged *domain.AuditLog
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		logged = entry
	})

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/shops/:id/rotate-key", func(c *gin.Context) {
		c.Set(CtxCompanyID, companyID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/shops/"+shopID+"/rotate-key", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, logged)
	assert.Equal(t, domain.AuditActionRotateKey, logged.Action)
	assert.Equal(t, "shop", logged.ResourceType)
	assert.Equal(t, shopID, logged.ResourceID)
	require.NotNil(t, logged.CompanyID)
	assert.Equal(t, companyID, *logged.CompanyID)
	assert.Equal(t, domain.AuditActorOperator, logged.Actor)
	assert.Nil(t, logged.ShopID)
}

func TestAuditLog_Initialize(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)
	shop := &domain.Shop{ID: uuid.New(), CompanyID: uuid.New()}
	verificationID := uuid.NewString()

	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionInitialize, entry.Action)
		assert.Equal(t, "verification", entry.ResourceType)
		assert.Equal(t, domain.AuditActorShop, entry.Actor)
		assert.Equal(t, verificationID, entry.ResourceID)
		if assert.NotNil(t, entry.ShopID) && assert.NotNil(t, entry.CompanyID) {
			assert.Equal(t, shop.ID, *entry.ShopID)
			assert.Equal(t, shop.CompanyID, *entry.CompanyID)
		}
	})

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/verifications/initialize", func(c *gin.Context) {
		c.Set(CtxShop, shop)
		SetAuditResource(c, verificationID)
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/verifications/initialize", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuditLog_SkipsFailuresReadsAndUnmappedRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl) // no calls expected

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/wallet/topups", func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})
	r.GET("/api/v1/wallet/balance", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.POST("/api/v1/unmapped", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topups", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/wallet/balance", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/unmapped", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func TestMapRouteToAction(t *testing.T) {
	tests := []struct {
		route    string
		method   string
		action   domain.AuditAction
		resource string
	}{
		{"/api/v1/verifications/revalidate", http.MethodPost, domain.AuditActionRevalidate, "verification"},
		{"/api/v1/wallet/topups", http.MethodPost, domain.AuditActionTopup, "wallet_transaction"},
		{"/api/v1/payments/check", http.MethodPost, domain.AuditActionPaymentCheck, "wallet_transaction"},
		{"/api/v1/shops/:id", http.MethodPut, domain.AuditActionUpdateShop, "shop"},
		{"/api/v1/shops/:id/methods", http.MethodPut, domain.AuditActionUpdateMethods, "shop"},
		{"/api/v1/shops/:id/webhook", http.MethodPut, domain.AuditActionUpdateWebhook, "shop"},
		{"/api/v1/shops/:id", http.MethodPost, "", ""},
	}

	for _, tt := range tests {
		action, resource := mapRouteToAction(tt.route, tt.method)
		assert.Equal(t, tt.action, action, tt.route)
		assert.Equal(t, tt.resource, resource, tt.route)
	}
}
