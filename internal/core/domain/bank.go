package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankDeposit is one incoming payment reported by the bank statement feed.
type BankDeposit struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	Timestamp time.Time       `json:"timestamp"`
}

// MatchDeposits sums every deposit whose reference equals ref.
// Comparison ignores surrounding whitespace and case.
func MatchDeposits(deposits []BankDeposit, ref string) (decimal.Decimal, bool) {
	want := NormalizeReference(ref)
	total := decimal.Zero
	matched := false
	for _, d := range deposits {
		if NormalizeReference(d.Reference) != want {
			continue
		}
		total = total.Add(d.Amount)
		matched = true
	}
	return total, matched
}
