package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Company owns one prepaid wallet and any number of shops billed against it.
type Company struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"` // never negative
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CanAfford reports whether the balance covers amount.
func (c *Company) CanAfford(amount decimal.Decimal) bool {
	return c.Balance.GreaterThanOrEqual(amount)
}
