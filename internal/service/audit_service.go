package service

import (
	"context"
	"sync"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

const (
	auditQueueSize    = 256
	auditWriteTimeout = 5 * time.Second
)

// AuditLogger writes audit entries from one background worker so request
// latency never depends on the audit store. When the queue is full the
// entry is logged and dropped.
type AuditLogger struct {
	repo ports.AuditRepository // nil logs only
	log  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *domain.AuditLog
	done   chan struct{}
}

func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditLogger {
	s := &AuditLogger{
		repo:  repo,
		log:   log,
		queue: make(chan *domain.AuditLog, auditQueueSize),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Log enqueues entry. It never blocks.
func (s *AuditLogger) Log(_ context.Context, entry *domain.AuditLog) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.log.Warn().Str("action", string(entry.Action)).Msg("audit logger closed, entry dropped")
		return
	}
	select {
	case s.queue <- entry:
	default:
		s.log.Warn().Str("action", string(entry.Action)).Str("resource_id", entry.ResourceID).Msg("audit queue full, entry dropped")
	}
}

// Wait stops accepting entries and returns once the queue is drained.
func (s *AuditLogger) Wait() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *AuditLogger) run() {
	defer close(s.done)
	for entry := range s.queue {
		s.write(entry)
	}
}

func (s *AuditLogger) write(entry *domain.AuditLog) {
	ev := s.log.Info().
		Str("actor", string(entry.Actor)).
		Str("action", string(entry.Action)).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID).
		Str("ip", entry.IPAddress)
	if entry.CompanyID != nil {
		ev = ev.Str("company_id", entry.CompanyID.String())
	}
	if entry.ShopID != nil {
		ev = ev.Str("shop_id", entry.ShopID.String())
	}
	ev.Msg("audit")

	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
	}
}
