package ledger

import (
	"sort"
	"time"

	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// BalanceSnapshot is the running balance of a customer right after one transaction
type BalanceSnapshot struct {
	CustomerID        string                 `json:"customer_id"`
	TransactionID     string                 `json:"transaction_id"`
	Type              shared.TransactionType `json:"type"`
	Amount            decimal.Decimal        `json:"amount"`
	CreatedAt         time.Time              `json:"created_at"`
	CumulativeEarned  decimal.Decimal        `json:"cumulative_earned"`
	CumulativeSpent   decimal.Decimal        `json:"cumulative_spent"`
	CumulativeExpired decimal.Decimal        `json:"cumulative_expired"`
	Balance           decimal.Decimal        `json:"balance"`
}

// CustomerBalance is the materialized current balance of a customer
type CustomerBalance struct {
	CustomerID        string          `json:"customer_id"`
	Balance           decimal.Decimal `json:"balance"`
	CumulativeEarned  decimal.Decimal `json:"cumulative_earned"`
	CumulativeSpent   decimal.Decimal `json:"cumulative_spent"`
	CumulativeExpired decimal.Decimal `json:"cumulative_expired"`
	AsOf              time.Time       `json:"as_of"`
	TransactionCount  int             `json:"transaction_count"`
}

// BalanceAsOf returns the last snapshot with created_at <= asOf.
// history must be in chronological order; values are never interpolated.
func BalanceAsOf(history []BalanceSnapshot, asOf time.Time) (BalanceSnapshot, bool) {
	idx := sort.Search(len(history), func(i int) bool {
		return history[i].CreatedAt.After(asOf)
	})
	if idx == 0 {
		return BalanceSnapshot{}, false
	}
	return history[idx-1], true
}

// CurrentBalance materializes the final snapshot of a history
func CurrentBalance(history []BalanceSnapshot) (CustomerBalance, bool) {
	if len(history) == 0 {
		return CustomerBalance{}, false
	}
	last := history[len(history)-1]
	return CustomerBalance{
		CustomerID:        last.CustomerID,
		Balance:           last.Balance,
		CumulativeEarned:  last.CumulativeEarned,
		CumulativeSpent:   last.CumulativeSpent,
		CumulativeExpired: last.CumulativeExpired,
		AsOf:              last.CreatedAt,
		TransactionCount:  len(history),
	}, true
}
