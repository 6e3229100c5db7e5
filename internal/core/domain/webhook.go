package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookStatus represents the delivery state of a webhook.
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "PENDING"
	WebhookStatusDelivered WebhookStatus = "DELIVERED"
	WebhookStatusFailed    WebhookStatus = "FAILED"
)

// WebhookDeliveryLog records each attempt to notify a shop about a finalized verification.
type WebhookDeliveryLog struct {
	ID             uuid.UUID     `json:"id"`
	VerificationID uuid.UUID     `json:"verification_id"`
	ShopID         uuid.UUID     `json:"shop_id"`
	WebhookURL     string        `json:"webhook_url"`
	Payload        string        `json:"payload"` // JSON string
	HTTPStatus     *int          `json:"http_status"`
	Attempt        int           `json:"attempt"`
	Status         WebhookStatus `json:"status"`
	LastError      *string       `json:"last_error"`
	CreatedAt      time.Time     `json:"created_at"`
}
