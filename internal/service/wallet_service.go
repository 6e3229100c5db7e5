package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/platform/metrics"
	"age-verification-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	idempotencyTTL = 24 * time.Hour
	// referenceAttempts bounds retries when a generated variable symbol is already taken.
	referenceAttempts = 5
)

var (
	referenceFloor = big.NewInt(1_000_000_000)
	referenceSpan  = big.NewInt(9_000_000_000)
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	companyRepo  ports.CompanyRepository
	walletTxRepo ports.WalletTransactionRepository
	idempRepo    ports.IdempotencyRepository
	idempCache   ports.IdempotencyCache
	ledger       ports.LedgerService
	transactor   ports.DBTransactor
	clock        ports.Clock
	metrics      *metrics.Metrics
	log          zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	companyRepo ports.CompanyRepository,
	walletTxRepo ports.WalletTransactionRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	ledger ports.LedgerService,
	transactor ports.DBTransactor,
	clock ports.Clock,
	m *metrics.Metrics,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		companyRepo:  companyRepo,
		walletTxRepo: walletTxRepo,
		idempRepo:    idempRepo,
		idempCache:   idempCache,
		ledger:       ledger,
		transactor:   transactor,
		clock:        clock,
		metrics:      m,
		log:          log,
	}
}

// RequestTopup creates a PENDING wallet transaction with a fresh variable symbol.
// A repeated Idempotency-Key returns the first response unchanged.
func (s *WalletServiceImpl) RequestTopup(ctx context.Context, req ports.TopupRequest) (*domain.WalletTransaction, error) {
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, apperror.ErrInvalidAmount()
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildTopupIdempotencyKey(req.CompanyID, req.IdempotencyKey)

		// Cache first, then the durable replay.
		cached, err := s.idempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalWalletTransaction(cached)
		}

		idempLog, err := s.idempRepo.Get(ctx, idempKey)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
		}
		if idempLog != nil {
			return unmarshalWalletTransaction(idempLog.Response)
		}
	}

	company, err := s.companyRepo.GetByID(ctx, req.CompanyID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get company: %w", err))
	}
	if company == nil {
		return nil, apperror.ErrNotFound("company")
	}

	for attempt := 1; attempt <= referenceAttempts; attempt++ {
		wt, respJSON, err := s.createTopup(ctx, req, idempKey)
		switch {
		case err == nil:
			if idempKey != "" {
				if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
					s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
				}
			}
			s.metrics.IncrementTopup()
			s.log.Info().
				Str("wallet_transaction_id", wt.ID.String()).
				Str("company_id", req.CompanyID.String()).
				Str("reference", wt.ExternalReference).
				Str("amount", wt.Amount.String()).
				Msg("topup requested successfully")
			return wt, nil

		case errors.Is(err, errReferenceTaken):
			s.log.Debug().Int("attempt", attempt).Msg("variable symbol collision, regenerating")
			continue

		case errors.Is(err, errIdempotencyRace):
			idempLog, getErr := s.idempRepo.Get(ctx, idempKey)
			if getErr != nil || idempLog == nil {
				return nil, apperror.InternalError(fmt.Errorf("load concurrent top-up replay: %w", errors.Join(err, getErr)))
			}
			return unmarshalWalletTransaction(idempLog.Response)

		default:
			return nil, err
		}
	}

	return nil, apperror.InternalError(fmt.Errorf("no free variable symbol after %d attempts", referenceAttempts))
}

var (
	errReferenceTaken  = errors.New("reference taken")
	errIdempotencyRace = errors.New("idempotency key stored concurrently")
)

func (s *WalletServiceImpl) createTopup(ctx context.Context, req ports.TopupRequest, idempKey string) (*domain.WalletTransaction, []byte, error) {
	reference, err := generateVariableSymbol()
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("generate reference: %w", err))
	}

	now := s.clock.Now()
	wt := &domain.WalletTransaction{
		ID:                uuid.New(),
		CompanyID:         req.CompanyID,
		Amount:            req.Amount,
		ExternalReference: reference,
		Status:            domain.WalletTransactionPending,
		CreatedAt:         now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.walletTxRepo.Create(ctx, dbTx, wt); err != nil {
		if errors.Is(err, ports.ErrDuplicateKey) {
			return nil, nil, errReferenceTaken
		}
		return nil, nil, apperror.InternalError(fmt.Errorf("create wallet transaction: %w", err))
	}

	respJSON, err := json.Marshal(wt)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}

	if idempKey != "" {
		entry := &domain.TopupReplay{
			Key:                 idempKey,
			CompanyID:           req.CompanyID,
			WalletTransactionID: wt.ID,
			Response:            respJSON,
			CreatedAt:           now,
		}
		if err := s.idempRepo.Create(ctx, dbTx, entry); err != nil {
			if errors.Is(err, ports.ErrDuplicateKey) {
				return nil, nil, errIdempotencyRace
			}
			return nil, nil, apperror.InternalError(fmt.Errorf("save top-up replay: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	return wt, respJSON, nil
}

// GetTransaction returns a top-up owned by companyID.
func (s *WalletServiceImpl) GetTransaction(ctx context.Context, companyID uuid.UUID, id uuid.UUID) (*domain.WalletTransaction, error) {
	wt, err := s.walletTxRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet transaction: %w", err))
	}
	if wt == nil || wt.CompanyID != companyID {
		return nil, apperror.ErrNotFound("wallet transaction")
	}
	return wt, nil
}

func (s *WalletServiceImpl) GetBalance(ctx context.Context, companyID uuid.UUID) (decimal.Decimal, error) {
	return s.ledger.GetBalance(ctx, companyID)
}

// generateVariableSymbol returns a random 10-digit payment reference without a leading zero.
func generateVariableSymbol() (string, error) {
	n, err := rand.Int(rand.Reader, referenceSpan)
	if err != nil {
		return "", err
	}
	return n.Add(n, referenceFloor).String(), nil
}

func unmarshalWalletTransaction(data []byte) (*domain.WalletTransaction, error) {
	var wt domain.WalletTransaction
	if err := json.Unmarshal(data, &wt); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached transaction: %w", err))
	}
	return &wt, nil
}
