package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"age-verification-gateway/config"
	apidocs "age-verification-gateway/docs/api"
	httpHandler "age-verification-gateway/internal/adapter/http/handler"
	"age-verification-gateway/internal/adapter/http/middleware"
	"age-verification-gateway/internal/app"
	"age-verification-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config.yaml)")
	specPath := flag.String("openapi", "", "OpenAPI document served at /swagger (defaults to the built-in copy)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Service: "avg-api"})
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("driver", cfg.Database.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Age Verification Gateway")

	ctx := context.Background()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	if a.InMemory {
		tenant, err := a.SeedDemo(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed demo tenant")
		}
		log.Info().
			Str("company_id", tenant.CompanyID.String()).
			Str("shop_id", tenant.ShopID.String()).
			Str("shop_api_key", tenant.ShopAPIKey).
			Str("operator_token", tenant.Token).
			Time("token_expires", tenant.TokenExpiry).
			Msg("Demo tenant seeded")
	}

	openAPI := apidocs.OpenAPI
	if *specPath != "" {
		if openAPI, err = os.ReadFile(*specPath); err != nil {
			log.Fatal().Err(err).Str("path", *specPath).Msg("Failed to read OpenAPI document")
		}
	}

	var rateLimits middleware.RateLimitStore
	if a.RateLimits != nil {
		rateLimits = a.RateLimits
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		ShopSvc:           a.Shops,
		VerificationSvc:   a.Verifications,
		WalletSvc:         a.Wallet,
		ReconciliationSvc: a.Reconciliation,
		ReportingSvc:      a.Reporting,
		TokenSvc:          a.Tokens,
		RateLimitStore:    rateLimits,
		AuditSvc:          a.Audit,
		HealthCheckers:    a.HealthCheckers,
		Metrics:           a.Metrics,
		Registry:          a.Registry,
		OpenAPI:           openAPI,
		Currency:          cfg.Pricing.Currency,
		Logger:            log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Provider calls can run up to providers.timeout; let them settle.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Providers.Timeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
