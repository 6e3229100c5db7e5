package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/platform/metrics"
	"age-verification-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ReconciliationServiceImpl implements ports.ReconciliationService.
// It is a stateless function over the pending top-ups and the bank feed, safe to
// run from several schedulers or alongside user-triggered checks.
type ReconciliationServiceImpl struct {
	walletTxRepo ports.WalletTransactionRepository
	feed         ports.BankFeed
	ledger       ports.LedgerService
	clock        ports.Clock
	retry        RetryPolicy
	concurrency  int
	metrics      *metrics.Metrics
	log          zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	walletTxRepo ports.WalletTransactionRepository,
	feed ports.BankFeed,
	ledger ports.LedgerService,
	clock ports.Clock,
	retry RetryPolicy,
	concurrency int,
	m *metrics.Metrics,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ReconciliationServiceImpl{
		walletTxRepo: walletTxRepo,
		feed:         feed,
		ledger:       ledger,
		clock:        clock,
		retry:        retry,
		concurrency:  concurrency,
		metrics:      m,
		log:          log,
	}
}

// Check reconciles one top-up by its payment reference.
func (s *ReconciliationServiceImpl) Check(ctx context.Context, reference string) (domain.WalletTransactionStatus, error) {
	wt, err := s.lookup(ctx, reference)
	if err != nil {
		return "", err
	}
	return s.check(ctx, wt)
}

// CheckForCompany reconciles a top-up only if companyID owns it.
func (s *ReconciliationServiceImpl) CheckForCompany(ctx context.Context, companyID uuid.UUID, reference string) (domain.WalletTransactionStatus, error) {
	wt, err := s.lookup(ctx, reference)
	if err != nil {
		return "", err
	}
	if wt.CompanyID != companyID {
		return "", apperror.ErrNotFound("wallet transaction")
	}
	return s.check(ctx, wt)
}

func (s *ReconciliationServiceImpl) lookup(ctx context.Context, reference string) (*domain.WalletTransaction, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, apperror.Validation("transaction reference is required")
	}
	wt, err := s.walletTxRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet transaction: %w", err))
	}
	if wt == nil {
		return nil, apperror.ErrNotFound("wallet transaction")
	}
	return wt, nil
}

func (s *ReconciliationServiceImpl) check(ctx context.Context, wt *domain.WalletTransaction) (domain.WalletTransactionStatus, error) {
	if wt.IsTerminal() {
		return wt.Status, nil
	}

	deposits, err := withRetry(ctx, s.retry, s.log, "bank feed query", func() ([]domain.BankDeposit, error) {
		deposits, err := s.feed.Query(ctx, wt.ExternalReference)
		if err != nil {
			if errors.Is(err, ports.ErrFeedUnavailable) {
				return nil, apperror.ErrFeedUnavailable(err)
			}
			return nil, apperror.InternalError(fmt.Errorf("query bank feed: %w", err))
		}
		return deposits, nil
	})
	if err != nil {
		s.metrics.ObserveReconcile("error")
		return "", err
	}

	total, matched := domain.MatchDeposits(deposits, wt.ExternalReference)
	if !matched || !total.IsPositive() {
		s.metrics.ObserveReconcile("pending")
		return domain.WalletTransactionPending, nil
	}

	credited, err := s.ledger.Credit(ctx, ports.CreditRequest{
		CompanyID:           wt.CompanyID,
		Amount:              total,
		WalletTransactionID: wt.ID,
	})
	if err != nil {
		s.metrics.ObserveReconcile("error")
		return "", err
	}
	if !credited {
		// Another caller settled it between our read and the credit.
		current, err := s.walletTxRepo.GetByID(ctx, wt.ID)
		if err != nil {
			return "", apperror.InternalError(fmt.Errorf("reload wallet transaction: %w", err))
		}
		if current == nil {
			return "", apperror.ErrNotFound("wallet transaction")
		}
		s.log.Debug().Str("reference", wt.ExternalReference).Str("status", string(current.Status)).Msg("top-up already settled")
		return current.Status, nil
	}

	if !total.Equal(wt.Amount) {
		s.log.Warn().
			Str("reference", wt.ExternalReference).
			Str("requested", wt.Amount.String()).
			Str("received", total.String()).
			Msg("deposit amount differs from requested top-up")
	}
	s.metrics.ObserveReconcile("completed")
	return domain.WalletTransactionCompleted, nil
}

// CheckAll reconciles every pending top-up with bounded concurrency.
// A failing transaction is counted and never stops the others.
func (s *ReconciliationServiceImpl) CheckAll(ctx context.Context) (*ports.CheckAllResult, error) {
	pending, err := s.walletTxRepo.ListPending(ctx, nil)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list pending: %w", err))
	}

	var (
		mu     sync.Mutex
		result ports.CheckAllResult
		g      errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for i := range pending {
		wt := &pending[i]
		g.Go(func() error {
			status, err := s.check(ctx, wt)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Errored++
				s.log.Warn().Err(err).Str("reference", wt.ExternalReference).Msg("reconciliation check failed")
			case status == domain.WalletTransactionCompleted:
				result.Completed++
			case status == domain.WalletTransactionFailed:
				result.Failed++
			default:
				result.Pending++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info().
		Int("checked", len(pending)).
		Int("completed", result.Completed).
		Int("pending", result.Pending).
		Int("failed", result.Failed).
		Int("errored", result.Errored).
		Msg("reconciliation sweep finished")

	return &result, nil
}

// Expire fails top-ups that stayed unmatched past olderThan.
// Each one gets a last feed check first; a feed outage leaves it PENDING.
func (s *ReconciliationServiceImpl) Expire(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, apperror.Validation("expiry age must be positive")
	}

	cutoff := s.clock.Now().Add(-olderThan)
	stale, err := s.walletTxRepo.ListPending(ctx, &cutoff)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list stale pending: %w", err))
	}

	expired := 0
	for i := range stale {
		wt := &stale[i]
		status, err := s.check(ctx, wt)
		if err != nil {
			s.log.Warn().Err(err).Str("reference", wt.ExternalReference).Msg("skipping expiry, last check failed")
			continue
		}
		if status != domain.WalletTransactionPending {
			continue
		}

		ok, err := s.walletTxRepo.MarkFailedIfPending(ctx, wt.ID, s.clock.Now())
		if err != nil {
			return expired, apperror.InternalError(fmt.Errorf("expire wallet transaction: %w", err))
		}
		if ok {
			expired++
			s.metrics.ObserveReconcile("expired")
			s.log.Info().Str("reference", wt.ExternalReference).Str("company_id", wt.CompanyID.String()).Msg("top-up expired")
		}
	}
	return expired, nil
}
