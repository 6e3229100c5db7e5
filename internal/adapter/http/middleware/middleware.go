package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/platform/metrics"
	"age-verification-gateway/pkg/apperror"
	"age-verification-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxCompanyID = "company_id"
	CtxShopID    = "shop_id"
	CtxShop      = "shop"
)

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) < 8 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// ShopKeyAuth authenticates widget calls by the shop API key.
// The key must belong to exactly one ACTIVE shop.
func ShopKeyAuth(shopSvc ports.ShopService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		shop, err := shopSvc.Authenticate(c.Request.Context(), bearerToken(c))
		if err != nil {
			if apperror.CodeOf(err) == apperror.CodeInternal {
				log.Error().Err(err).Msg("failed to authenticate shop")
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxShop, shop)
		c.Set(CtxShopID, shop.ID)
		c.Set(CtxCompanyID, shop.CompanyID)
		c.Next()
	}
}

// JWTAuth validates company operator tokens for dashboard routes.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			log.Debug().Err(err).Msg("rejected operator token")
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxCompanyID, claims.CompanyID)
		c.Next()
	}
}

// CompanyID returns the authenticated company.
func CompanyID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(CtxCompanyID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Shop returns the shop authenticated by ShopKeyAuth.
func Shop(c *gin.Context) (*domain.Shop, bool) {
	v, ok := c.Get(CtxShop)
	if !ok {
		return nil, false
	}
	shop, ok := v.(*domain.Shop)
	return shop, ok && shop != nil
}

// RequestID propagates X-Request-ID or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(response.RequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		if id, ok := c.Get(response.RequestIDKey); ok {
			event = event.Interface("request_id", id)
		}
		if companyID, ok := CompanyID(c); ok {
			event = event.Str("company_id", companyID.String())
		}
		if last := c.Errors.Last(); last != nil {
			event = event.AnErr("error", last.Err)
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Metrics records request latency by route pattern.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": apperror.CodeInternal,
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
