package domain

import (
	"time"

	"github.com/google/uuid"
)

// ShopStatus represents whether a shop may start verifications.
type ShopStatus string

const (
	ShopStatusActive   ShopStatus = "ACTIVE"
	ShopStatusInactive ShopStatus = "INACTIVE"
)

// Shop is a merchant integration unit. The widget authenticates with its API key.
type Shop struct {
	ID             uuid.UUID            `json:"id"`
	CompanyID      uuid.UUID            `json:"company_id"`
	Name           string               `json:"name"`
	APIKey         string               `json:"-"`
	Status         ShopStatus           `json:"status"`
	AllowedMethods []VerificationMethod `json:"allowed_methods"`
	WebhookURL     *string              `json:"webhook_url,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// IsActive returns true if the shop may start verifications.
func (s *Shop) IsActive() bool {
	return s.Status == ShopStatusActive
}

// Allows reports whether method is enabled for this shop.
func (s *Shop) Allows(method VerificationMethod) bool {
	for _, m := range s.AllowedMethods {
		if m == method {
			return true
		}
	}
	return false
}
