package postgres

import (
	"context"
	"fmt"

	"age-verification-gateway/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	var details *string
	if entry.Details != "" {
		details = &entry.Details
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, actor, company_id, shop_id, action, resource_type, resource_id, details, ip_address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, string(entry.Actor), entry.CompanyID, entry.ShopID, string(entry.Action), entry.ResourceType,
		entry.ResourceID, details, entry.IPAddress, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
