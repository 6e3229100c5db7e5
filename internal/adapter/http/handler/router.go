package handler

import (
	"age-verification-gateway/internal/adapter/http/middleware"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/platform/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	ShopSvc           ports.ShopService
	VerificationSvc   ports.VerificationService
	WalletSvc         ports.WalletService
	ReconciliationSvc ports.ReconciliationService
	ReportingSvc      ports.ReportingService
	TokenSvc          ports.TokenService
	RateLimitStore    middleware.RateLimitStore // nil = rate limiting disabled
	AuditSvc          ports.AuditService        // nil = audit logging disabled
	HealthCheckers    []ports.HealthChecker
	Metrics           *metrics.Metrics
	Registry          prometheus.Gatherer // nil = no /metrics endpoint
	OpenAPI           []byte              // served under /swagger
	Currency          string
	Logger            zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	docs := NewDocsHandler(deps.OpenAPI)
	r.GET("/swagger", docs.UI)
	r.GET("/swagger/spec", docs.Spec)

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Widget routes (shop API key) ---
	shopAuth := middleware.ShopKeyAuth(deps.ShopSvc, deps.Logger)
	verificationHandler := NewVerificationHandler(deps.VerificationSvc)
	widget := v1.Group("/verifications", shopAuth)
	{
		widget.POST("/initialize", rl("verifications"), verificationHandler.Initialize)
		widget.GET("/status", rl("verifications"), verificationHandler.Status)
		widget.POST("/revalidate", rl("revalidate"), verificationHandler.Revalidate)
	}

	// --- Company routes (JWT) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc, deps.Currency)
	paymentHandler := NewPaymentHandler(deps.ReconciliationSvc, deps.WalletSvc)
	dashboardHandler := NewDashboardHandler(deps.ReportingSvc)
	shopHandler := NewShopHandler(deps.ShopSvc)

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("/balance", rl("dashboard"), walletHandler.GetBalance)
		wallet.POST("/topups", rl("wallet_topup"), walletHandler.Topup)
	}

	payments := v1.Group("/payments", jwtAuth)
	{
		payments.POST("/check", rl("payments_check"), paymentHandler.Check)
		payments.GET("/transactions/:id", rl("dashboard"), paymentHandler.GetTransaction)
	}

	v1.GET("/verifications", jwtAuth, rl("dashboard"), dashboardHandler.ListVerifications)
	v1.GET("/dashboard/stats", jwtAuth, rl("dashboard"), dashboardHandler.GetStats)

	shops := v1.Group("/shops", jwtAuth)
	{
		shops.GET("/:id", rl("shops"), shopHandler.Get)
		shops.PUT("/:id", rl("shops"), shopHandler.Update)
		shops.PUT("/:id/methods", rl("shops"), shopHandler.UpdateMethods)
		shops.PUT("/:id/webhook", rl("shops"), shopHandler.UpdateWebhook)
		shops.POST("/:id/rotate-key", rl("shops"), shopHandler.RotateKey)
	}

	return r
}
