package ledger

import (
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Match links an Earned record to the Spent/Expired record that consumed it
type Match struct {
	EarnedID string `json:"earned_id" bson:"earned_id"`
	SpendID  string `json:"spend_id" bson:"spend_id"`
}

// Orphan is a Spent/Expired record with no earned balance available to match
type Orphan struct {
	Transaction Transaction       `json:"transaction"`
	Reason      shared.ReasonCode `json:"reason"`
}

// MatchOutcome is the FIFO matching result for one customer
type MatchOutcome struct {
	CustomerID string        `json:"customer_id"`
	Matches    []Match       `json:"matches"`
	Orphans    []Orphan      `json:"orphans"`
	Unconsumed []Transaction `json:"unconsumed"`
	// Ledger holds every transaction of the customer with match links applied
	Ledger []Transaction `json:"ledger"`
}

// OrphanAmount sums the amounts of all orphaned records
func (o *MatchOutcome) OrphanAmount() decimal.Decimal {
	total := decimal.Zero
	for _, orphan := range o.Orphans {
		total = total.Add(orphan.Transaction.Amount)
	}
	return total
}

// UnconsumedAmount sums the amounts of all surplus earned records
func (o *MatchOutcome) UnconsumedAmount() decimal.Decimal {
	return SignedTotal(o.Unconsumed)
}
