package domain

import (
	"time"

	"github.com/google/uuid"
)

// TopupReplay is the stored first response to a top-up request made with an
// Idempotency-Key. Key is scoped to the company, see BuildTopupIdempotencyKey.
type TopupReplay struct {
	Key                 string
	CompanyID           uuid.UUID
	WalletTransactionID uuid.UUID
	Response            []byte
	CreatedAt           time.Time
}

func BuildTopupIdempotencyKey(companyID uuid.UUID, clientKey string) string {
	return companyID.String() + ":topup:" + clientKey
}
