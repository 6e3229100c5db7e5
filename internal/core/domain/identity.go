package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerifiedIdentity remembers a successful identity check so later revalidations
// can be answered without another full verification.
type VerifiedIdentity struct {
	ID             uuid.UUID          `json:"id"`
	CompanyID      uuid.UUID          `json:"company_id"`
	Method         VerificationMethod `json:"method"`
	Fingerprint    string             `json:"-"` // keyed HMAC of the identifier
	IdentifierEnc  string             `json:"-"` // AES-256-GCM
	VerificationID uuid.UUID          `json:"verification_id"`
	VerifiedAt     time.Time          `json:"verified_at"`
}
