package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/core/ports/mocks"
	"age-verification-gateway/internal/platform/metrics"
	"age-verification-gateway/pkg/apperror"
	"age-verification-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

// --- ShopKeyAuth ---

func TestShopKeyAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	shopSvc := mocks.NewMockShopService(ctrl)
	shop := &domain.Shop{ID: uuid.New(), CompanyID: uuid.New(), Status: domain.ShopStatusActive}
	shopSvc.EXPECT().Authenticate(gomock.Any(), "shk_live").Return(shop, nil)

	var gotShop *domain.Shop
	var gotCompany uuid.UUID
	router := gin.New()
	router.GET("/test", ShopKeyAuth(shopSvc, zerolog.Nop()), func(c *gin.Context) {
		gotShop, _ = Shop(c)
		gotCompany, _ = CompanyID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer shk_live")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, shop, gotShop)
	assert.Equal(t, shop.CompanyID, gotCompany)
}

func TestShopKeyAuth_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		apiKey     string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", "", apperror.ErrInvalidCredential(), http.StatusUnauthorized, apperror.CodeInvalidCredential},
		{"basic scheme", "Basic abc", "", apperror.ErrInvalidCredential(), http.StatusUnauthorized, apperror.CodeInvalidCredential},
		{"unknown key", "Bearer shk_nope", "shk_nope", apperror.ErrInvalidCredential(), http.StatusUnauthorized, apperror.CodeInvalidCredential},
		{"inactive shop", "Bearer shk_off", "shk_off", apperror.ErrShopInactive(), http.StatusForbidden, apperror.CodeShopInactive},
		{"storage failure", "Bearer shk_x", "shk_x", apperror.InternalError(errors.New("db down")), http.StatusInternalServerError, apperror.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			shopSvc := mocks.NewMockShopService(ctrl)
			shopSvc.EXPECT().Authenticate(gomock.Any(), tt.apiKey).Return(nil, tt.err)

			router := gin.New()
			router.GET("/test", ShopKeyAuth(shopSvc, zerolog.Nop()), func(c *gin.Context) {
				t.Fatal("handler must not run")
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, w))
		})
	}
}

// --- JWTAuth ---

func TestJWTAuth_MissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)

	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeInvalidToken, errorCode(t, w))
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("bad_token").Return(nil, errors.New("token is expired"))

	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer bad_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)

	companyID := uuid.New()
	tokenSvc.EXPECT().Validate("good_token").Return(&ports.TokenClaims{CompanyID: companyID}, nil)

	var capturedID uuid.UUID
	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		capturedID, _ = CompanyID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "bearer good_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, companyID, capturedID)
}

// --- RequestID / Recovery / Metrics ---

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		response.OK(c, gin.H{})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	generated := w.Header().Get(HeaderRequestID)
	assert.NotEmpty(t, generated)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, generated, resp["request_id"])

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "trace-42")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "trace-42", w.Header().Get(HeaderRequestID))
}

func TestRecovery_PanicRecovered(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, errorCode(t, w))
}

func TestRequestLogger_DoesNotAlterResponse(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger(zerolog.Nop()))
	router.GET("/teapot", func(c *gin.Context) {
		c.Status(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/teapot", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestRequestLogger_LogsErrorCause(t *testing.T) {
	var buf bytes.Buffer
	router := gin.New()
	router.Use(RequestLogger(zerolog.New(&buf)))
	router.GET("/fail", func(c *gin.Context) {
		response.Error(c, apperror.InternalError(errors.New("ledger insert: deadlock detected")))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Contains(t, line["error"], "deadlock detected")
	assert.NotContains(t, w.Body.String(), "deadlock")
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	router := gin.New()
	router.Use(Metrics(m))
	router.GET("/api/v1/shops/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/shops/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	n, err := testutil.GatherAndCount(reg, "avg_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
