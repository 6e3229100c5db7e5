// Package memory is an in-process storage backend with the same locking
// contract as the PostgreSQL adapter. Rows locked through a Tx stay locked
// until Commit or Rollback. Writes made through a Tx are buffered and become
// visible to every reader at Commit; reads, including those inside the Tx,
// see committed state only. An insert locks its unique key until the Tx
// ends, so a concurrent insert of the same key waits and then fails.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction was not started by this store")

// Store holds every table in maps guarded by a single mutex.
// Row locks are separate one-slot channels so they can be held across calls.
type Store struct {
	mu sync.Mutex

	companies          map[uuid.UUID]domain.Company
	shops              map[uuid.UUID]domain.Shop
	shopKeys           map[string]uuid.UUID
	verifications      map[uuid.UUID]domain.Verification
	walletTransactions map[uuid.UUID]domain.WalletTransaction
	walletReferences   map[string]uuid.UUID
	ledger             []domain.LedgerEntry
	ledgerKeys         map[string]struct{}
	identities         []domain.VerifiedIdentity
	idempotency        map[string]domain.TopupReplay
	audit              []domain.AuditLog
	webhooks           []domain.WebhookDeliveryLog

	lockMu      sync.Mutex
	locks       map[string]chan struct{}
	lockTimeout time.Duration
}

// NewStore creates an empty store. A positive lockTimeout bounds row-lock waits.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		companies:          make(map[uuid.UUID]domain.Company),
		shops:              make(map[uuid.UUID]domain.Shop),
		shopKeys:           make(map[string]uuid.UUID),
		verifications:      make(map[uuid.UUID]domain.Verification),
		walletTransactions: make(map[uuid.UUID]domain.WalletTransaction),
		walletReferences:   make(map[string]uuid.UUID),
		ledgerKeys:         make(map[string]struct{}),
		idempotency:        make(map[string]domain.TopupReplay),
		locks:              make(map[string]chan struct{}),
		lockTimeout:        lockTimeout,
	}
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: s, held: make(map[string]struct{}), claims: make(map[string]struct{})}, nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

func (s *Store) slot(key string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

// acquire blocks until the row lock for key is free. Timeouts and
// cancellation surface as ports.ErrLockConflict, like 55P03 does.
func (s *Store) acquire(ctx context.Context, key string) error {
	ch := s.slot(key)

	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ch <- struct{}{}:
		return nil
	case <-timeout:
		return fmt.Errorf("%w: lock on %s timed out", ports.ErrLockConflict, key)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ports.ErrLockConflict, ctx.Err())
	}
}

func (s *Store) release(key string) {
	<-s.slot(key)
}

// Tx is the transaction handle returned by Store.Begin. Only Commit and
// Rollback are usable; the remaining pgx.Tx methods are not supported.
type Tx struct {
	pgx.Tx

	store  *Store
	mu     sync.Mutex
	held   map[string]struct{}
	order  []string
	writes []func()
	claims map[string]struct{}
	done   bool
}

// lock takes the row lock for key once per transaction.
func (t *Tx) lock(ctx context.Context, key string) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	if _, ok := t.held[key]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.store.acquire(ctx, key); err != nil {
		return err
	}

	t.mu.Lock()
	t.held[key] = struct{}{}
	t.order = append(t.order, key)
	t.mu.Unlock()
	return nil
}

// stage buffers a write until Commit. fn runs with store.mu held.
func (t *Tx) stage(fn func()) {
	t.mu.Lock()
	t.writes = append(t.writes, fn)
	t.mu.Unlock()
}

// claim locks the unique key until the transaction ends and fails with
// ports.ErrDuplicateKey when the key is committed or already claimed by t.
func (t *Tx) claim(ctx context.Context, key string, committed func() bool) error {
	if err := t.lock(ctx, "unique:"+key); err != nil {
		return err
	}

	t.store.mu.Lock()
	taken := committed()
	t.store.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, mine := t.claims[key]; taken || mine {
		return fmt.Errorf("%s: %w", key, ports.ErrDuplicateKey)
	}
	t.claims[key] = struct{}{}
	return nil
}

func (t *Tx) Commit(context.Context) error {
	return t.finish(true)
}

func (t *Tx) Rollback(context.Context) error {
	return t.finish(false)
}

func (t *Tx) finish(commit bool) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	t.done = true
	writes, order := t.writes, t.order
	t.writes, t.claims, t.order = nil, nil, nil
	t.mu.Unlock()

	if commit && len(writes) > 0 {
		t.store.mu.Lock()
		for _, apply := range writes {
			apply()
		}
		t.store.mu.Unlock()
	}

	for i := len(order) - 1; i >= 0; i-- {
		t.store.release(order[i])
	}
	return nil
}

func asTx(tx pgx.Tx) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok || mt == nil {
		return nil, errForeignTx
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

func companyKey(id uuid.UUID) string      { return "company:" + id.String() }
func verificationKey(id uuid.UUID) string { return "verification:" + id.String() }
func walletKey(id uuid.UUID) string       { return "wallettx:" + id.String() }
