package postgres

import (
	"context"
	"fmt"

	"age-verification-gateway/internal/core/domain"
)

// WebhookRepo implements ports.WebhookRepository.
type WebhookRepo struct {
	pool Pool
}

// NewWebhookRepo creates a new WebhookRepo.
func NewWebhookRepo(pool Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

func (r *WebhookRepo) Create(ctx context.Context, entry *domain.WebhookDeliveryLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO webhook_delivery_logs
		(id, verification_id, shop_id, webhook_url, payload, http_status, attempt, status, last_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.VerificationID, entry.ShopID, entry.WebhookURL,
		entry.Payload, entry.HTTPStatus, entry.Attempt, string(entry.Status),
		entry.LastError, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery log: %w", err)
	}
	return nil
}
