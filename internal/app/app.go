// Package app wires configuration, storage and services into the graph
// shared by the API server and the reconciler.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"age-verification-gateway/config"
	"age-verification-gateway/internal/adapter/bankfeed"
	"age-verification-gateway/internal/adapter/provider"
	"age-verification-gateway/internal/adapter/storage/memory"
	pgStorage "age-verification-gateway/internal/adapter/storage/postgres"
	redisStorage "age-verification-gateway/internal/adapter/storage/redis"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/platform/metrics"
	"age-verification-gateway/internal/service"
	"age-verification-gateway/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// Repositories groups the storage ports of one driver.
type Repositories struct {
	Companies          ports.CompanyRepository
	Shops              ports.ShopRepository
	Verifications      ports.VerificationRepository
	WalletTransactions ports.WalletTransactionRepository
	Ledger             ports.LedgerRepository
	Identities         ports.IdentityRepository
	Idempotency        ports.IdempotencyRepository
	Audit              ports.AuditRepository
	Webhooks           ports.WebhookRepository
	Transactor         ports.DBTransactor
}

// App is the assembled service graph.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Repos    Repositories

	Shops          ports.ShopService
	Verifications  ports.VerificationService
	Wallet         ports.WalletService
	Reconciliation ports.ReconciliationService
	Reporting      ports.ReportingService
	Tokens         *service.JWTTokenService
	Audit          *service.AuditLogger
	Notifier       *service.WebhookNotifier
	Sweeper        *service.Sweeper

	RateLimits     *redisStorage.RateLimitStore // nil without redis
	HealthCheckers []ports.HealthChecker
	// InMemory reports that all state lives in this process.
	InMemory bool

	closers []func()
}

// New connects storage and builds every service. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var (
		idempCache ports.IdempotencyCache
		lease      ports.LeaseLock
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		idempCache = redisStorage.NewIdempotencyCache(rdb)
		lease = redisStorage.NewLeaseLock(rdb)
		a.RateLimits = redisStorage.NewRateLimitStore(rdb)
		a.HealthCheckers = append(a.HealthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled; using in-process idempotency cache and lease, rate limiting off")
		cache := memory.NewCache()
		idempCache, lease = cache, cache
	}

	if err := a.buildServices(idempCache, lease); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	cfg := a.Config.Database

	switch cfg.Driver {
	case "memory":
		store := memory.NewStore(cfg.LockTimeout)
		a.InMemory = true
		a.Repos = Repositories{
			Companies:          memory.NewCompanyRepo(store),
			Shops:              memory.NewShopRepo(store),
			Verifications:      memory.NewVerificationRepo(store),
			WalletTransactions: memory.NewWalletTransactionRepo(store),
			Ledger:             memory.NewLedgerRepo(store),
			Identities:         memory.NewIdentityRepo(store),
			Idempotency:        memory.NewIdempotencyRepo(store),
			Audit:              memory.NewAuditRepo(store),
			Webhooks:           memory.NewWebhookRepo(store),
			Transactor:         store,
		}
		a.HealthCheckers = append(a.HealthCheckers, store)
		a.Log.Warn().Msg("Using in-memory storage; all state is lost on exit")
		return nil

	case "postgres", "":
		pool, err := pgStorage.NewPool(ctx, cfg, a.Log)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		if cfg.Migrate {
			if err := runMigrations(ctx, pool, a.Log); err != nil {
				return err
			}
		}

		a.Repos = Repositories{
			Companies:          pgStorage.NewCompanyRepo(pool),
			Shops:              pgStorage.NewShopRepo(pool),
			Verifications:      pgStorage.NewVerificationRepo(pool),
			WalletTransactions: pgStorage.NewWalletTransactionRepo(pool),
			Ledger:             pgStorage.NewLedgerRepo(pool),
			Identities:         pgStorage.NewIdentityRepo(pool),
			Idempotency:        pgStorage.NewIdempotencyRepo(pool),
			Audit:              pgStorage.NewAuditRepo(pool),
			Webhooks:           pgStorage.NewWebhookRepo(pool),
			Transactor:         pgStorage.NewTransactor(pool, cfg.LockTimeout),
		}
		a.HealthCheckers = append(a.HealthCheckers, pgStorage.NewHealthCheck(pool))
		return nil
	}

	return fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) error {
	applied, err := migrations.Apply(ctx, pool)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, name := range applied {
		log.Info().Str("migration", name).Msg("Applied migration")
	}
	return nil
}

func (a *App) buildServices(idempCache ports.IdempotencyCache, lease ports.LeaseLock) error {
	cfg := a.Config
	log := a.Log
	clock := service.SystemClock{}
	r := a.Repos

	if cfg.Security.MasterKey == "" {
		return errors.New("security.master_key is required")
	}
	if cfg.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret is required")
	}

	keys, err := service.DeriveKeys(cfg.Security.MasterKey)
	if err != nil {
		return fmt.Errorf("derive keys: %w", err)
	}
	encSvc, err := service.NewAESEncryptionService(keys.Encryption)
	if err != nil {
		return fmt.Errorf("encryption service: %w", err)
	}
	fingerprinter := service.NewHMACFingerprinter(keys.Fingerprint)

	pricing, err := service.NewPricingTable(cfg.Pricing)
	if err != nil {
		return fmt.Errorf("pricing: %w", err)
	}
	providers, err := provider.NewRegistryFromConfig(cfg.Providers, r.Identities, fingerprinter, log)
	if err != nil {
		return fmt.Errorf("providers: %w", err)
	}
	feed := bankfeed.NewClient(cfg.BankFeed, cfg.BankFeed.RequestsPerSecond, log)

	retry := service.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, Backoff: cfg.Retry.Backoff}

	a.Tokens = service.NewJWTTokenService(cfg.Security.JWTSecret, cfg.Security.JWTExpiry, cfg.Security.JWTIssuer)
	a.Audit = service.NewAuditService(r.Audit, log)
	a.Notifier = service.NewWebhookNotifier(
		r.Shops, r.Webhooks, service.NewHMACWebhookSigner(),
		&http.Client{Timeout: 10 * time.Second}, clock, log,
	)

	ledger := service.NewLedgerService(
		r.Companies, r.Verifications, r.WalletTransactions, r.Ledger, r.Transactor,
		clock, retry, a.Metrics, log,
	)
	a.Shops = service.NewShopService(r.Shops, clock, log)
	a.Verifications = service.NewVerificationService(
		r.Shops, r.Verifications, r.Identities, ledger, providers, pricing,
		encSvc, fingerprinter, a.Notifier, clock, cfg.Providers.Timeout, a.Metrics, log,
	)
	a.Wallet = service.NewWalletService(
		r.Companies, r.WalletTransactions, r.Idempotency, idempCache, ledger, r.Transactor,
		clock, a.Metrics, log,
	)
	a.Reconciliation = service.NewReconciliationService(
		r.WalletTransactions, feed, ledger, clock, retry, cfg.Reconciliation.Concurrency, a.Metrics, log,
	)
	a.Reporting = service.NewReportingService(r.Verifications, clock)
	a.Sweeper = service.NewSweeper(lease, a.Verifications, a.Reconciliation, service.SweepConfig{
		LeaseTTL:          cfg.Reconciliation.LeaseTTL,
		StaleVerification: cfg.Reconciliation.StaleVerification,
		ExpireAfter:       cfg.Reconciliation.ExpireAfter,
	}, log)

	return nil
}

// Close drains background work and releases connections in reverse order.
func (a *App) Close() {
	if a.Notifier != nil {
		a.Notifier.Close()
	}
	if a.Audit != nil {
		a.Audit.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
