package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntryType is the kind of balance movement.
type LedgerEntryType string

const (
	LedgerEntryDebit  LedgerEntryType = "DEBIT"
	LedgerEntryCredit LedgerEntryType = "CREDIT"
	LedgerEntryRefund LedgerEntryType = "REFUND"
)

// LedgerEntry is an immutable record written with every balance change.
// Amount is always positive; the sign comes from EntryType.
type LedgerEntry struct {
	ID                  uuid.UUID       `json:"id"`
	CompanyID           uuid.UUID       `json:"company_id"`
	EntryType           LedgerEntryType `json:"entry_type"`
	Amount              decimal.Decimal `json:"amount"`
	VerificationID      *uuid.UUID      `json:"verification_id,omitempty"`
	WalletTransactionID *uuid.UUID      `json:"wallet_transaction_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// Signed returns the entry's effect on the balance.
func (e *LedgerEntry) Signed() decimal.Decimal {
	if e.EntryType == LedgerEntryDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// LedgerTotal sums credits and refunds minus debits.
func LedgerTotal(entries []LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for i := range entries {
		total = total.Add(entries[i].Signed())
	}
	return total
}
