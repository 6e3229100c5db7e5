package service

import (
	"context"
	"fmt"
	"time"

	"age-verification-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SweepLease is the lease name shared by every reconciler instance.
const SweepLease = "reconciliation-sweep"

// SweepConfig controls one scheduled reconciliation run.
type SweepConfig struct {
	LeaseTTL          time.Duration
	StaleVerification time.Duration // 0 disables the stale verification sweep
	ExpireAfter       time.Duration // 0 never fails pending top-ups
}

// SweepReport summarizes a run. Skipped is set when another instance held the lease.
type SweepReport struct {
	Skipped             bool
	StaleRefunded       int
	Reconciliation      ports.CheckAllResult
	ExpiredTransactions int
}

// Sweeper is the externally scheduled entry point of reconciliation.
type Sweeper struct {
	lease          ports.LeaseLock
	verifications  ports.VerificationService
	reconciliation ports.ReconciliationService
	cfg            SweepConfig
	owner          string
	log            zerolog.Logger
}

// NewSweeper creates a Sweeper. lease may be nil when only one scheduler runs.
func NewSweeper(
	lease ports.LeaseLock,
	verifications ports.VerificationService,
	reconciliation ports.ReconciliationService,
	cfg SweepConfig,
	log zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		lease:          lease,
		verifications:  verifications,
		reconciliation: reconciliation,
		cfg:            cfg,
		owner:          uuid.NewString(),
		log:            log,
	}
}

// Run refunds stuck verifications, reconciles pending top-ups and expires old ones.
func (s *Sweeper) Run(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}

	if s.lease != nil {
		acquired, err := s.lease.Acquire(ctx, SweepLease, s.owner, s.cfg.LeaseTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire lease: %w", err)
		}
		if !acquired {
			s.log.Info().Msg("another reconciler holds the lease, skipping run")
			report.Skipped = true
			return report, nil
		}
		defer func() {
			if err := s.lease.Release(context.WithoutCancel(ctx), SweepLease, s.owner); err != nil {
				s.log.Warn().Err(err).Msg("failed to release lease")
			}
		}()
	}

	if s.cfg.StaleVerification > 0 {
		n, err := s.verifications.ExpireStale(ctx, s.cfg.StaleVerification)
		if err != nil {
			return nil, fmt.Errorf("expire stale verifications: %w", err)
		}
		report.StaleRefunded = n
	}

	result, err := s.reconciliation.CheckAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("check pending top-ups: %w", err)
	}
	report.Reconciliation = *result

	if s.cfg.ExpireAfter > 0 {
		n, err := s.reconciliation.Expire(ctx, s.cfg.ExpireAfter)
		if err != nil {
			return nil, fmt.Errorf("expire top-ups: %w", err)
		}
		report.ExpiredTransactions = n
	}

	s.log.Info().
		Int("stale_refunded", report.StaleRefunded).
		Int("completed", report.Reconciliation.Completed).
		Int("pending", report.Reconciliation.Pending).
		Int("failed", report.Reconciliation.Failed).
		Int("errored", report.Reconciliation.Errored).
		Int("expired", report.ExpiredTransactions).
		Msg("reconciliation run finished")

	return report, nil
}
