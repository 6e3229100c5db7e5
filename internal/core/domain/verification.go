package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VerificationMethod names a provider and its pricing key.
type VerificationMethod string

const (
	MethodBankID     VerificationMethod = "bankid"
	MethodMojeID     VerificationMethod = "mojeid"
	MethodOCR        VerificationMethod = "ocr"
	MethodFaceScan   VerificationMethod = "facescan"
	MethodRevalidate VerificationMethod = "revalidate"
)

// IdentityMethods are the methods a shop can enable. Revalidate is billed separately.
var IdentityMethods = []VerificationMethod{MethodBankID, MethodMojeID, MethodOCR, MethodFaceScan}

// ParseVerificationMethod accepts any known method name, case-insensitively.
func ParseVerificationMethod(s string) (VerificationMethod, error) {
	m := VerificationMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodBankID, MethodMojeID, MethodOCR, MethodFaceScan, MethodRevalidate:
		return m, nil
	}
	return "", fmt.Errorf("unknown verification method %q", s)
}

// IsIdentityMethod reports whether m is a first-time identity check (not revalidate).
func (m VerificationMethod) IsIdentityMethod() bool {
	for _, im := range IdentityMethods {
		if im == m {
			return true
		}
	}
	return false
}

// VerificationStatus is the lifecycle state of a verification.
type VerificationStatus string

const (
	VerificationStatusPending   VerificationStatus = "PENDING"
	VerificationStatusCompleted VerificationStatus = "COMPLETED"
	VerificationStatusFailed    VerificationStatus = "FAILED"
)

// VerificationResult is the provider outcome. Nil while pending.
type VerificationResult string

const (
	VerificationResultSuccess VerificationResult = "SUCCESS"
	VerificationResultFailure VerificationResult = "FAILURE"
)

// Verification is one billed identity check.
type Verification struct {
	ID          uuid.UUID           `json:"id"`
	ShopID      uuid.UUID           `json:"shop_id"`
	CompanyID   uuid.UUID           `json:"company_id"`
	Method      VerificationMethod  `json:"method"`
	Status      VerificationStatus  `json:"status"`
	Result      *VerificationResult `json:"result"`
	Price       decimal.Decimal     `json:"price"`
	RedirectURL *string             `json:"redirect_url,omitempty"`
	RefundedAt  *time.Time          `json:"refunded_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// IsTerminal returns true once the provider outcome has been settled.
func (v *Verification) IsTerminal() bool {
	return v.Status == VerificationStatusCompleted || v.Status == VerificationStatusFailed
}

// IsRefundable returns true while the debit may still be returned.
func (v *Verification) IsRefundable() bool {
	return v.Status == VerificationStatusPending && v.RefundedAt == nil
}

// Succeeded returns true for COMPLETED/SUCCESS.
func (v *Verification) Succeeded() bool {
	return v.Status == VerificationStatusCompleted &&
		v.Result != nil && *v.Result == VerificationResultSuccess
}
