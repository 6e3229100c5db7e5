package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletTransactionStatus is the lifecycle state of a top-up.
type WalletTransactionStatus string

const (
	WalletTransactionPending   WalletTransactionStatus = "PENDING"
	WalletTransactionCompleted WalletTransactionStatus = "COMPLETED"
	WalletTransactionFailed    WalletTransactionStatus = "FAILED"
)

// WalletTransaction is a requested top-up awaiting a matching bank deposit.
// ExternalReference is the variable symbol the customer puts on the transfer.
type WalletTransaction struct {
	ID                uuid.UUID               `json:"id"`
	CompanyID         uuid.UUID               `json:"company_id"`
	Amount            decimal.Decimal         `json:"amount"`
	ExternalReference string                  `json:"external_reference"`
	Status            WalletTransactionStatus `json:"status"`
	CreditedAmount    *decimal.Decimal        `json:"credited_amount,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	ProcessedAt       *time.Time              `json:"processed_at,omitempty"`
}

// IsTerminal returns true if the transaction moved out of PENDING.
func (t *WalletTransaction) IsTerminal() bool {
	return t.Status == WalletTransactionCompleted || t.Status == WalletTransactionFailed
}

// NormalizeReference trims and upper-cases a payment reference for comparison.
func NormalizeReference(ref string) string {
	return strings.ToUpper(strings.TrimSpace(ref))
}
