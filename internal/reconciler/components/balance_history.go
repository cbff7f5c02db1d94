package components

import (
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/rewards-reconciler/internal/reconciler/service"
	"github.com/shopspring/decimal"
)

type BalanceHistoryBuilder struct{}

func NewBalanceHistoryBuilder() service.HistoryBuilder {
	return BalanceHistoryBuilder{}
}

// Build emits one snapshot per transaction in (created_at, transaction_id) order.
// Matched, orphaned and unconsumed records all contribute.
func (BalanceHistoryBuilder) Build(customerID string, txs []ledger.Transaction) []ledger.BalanceSnapshot {
	ordered := make([]ledger.Transaction, len(txs))
	copy(ordered, txs)
	ledger.SortChronologically(ordered)

	history := make([]ledger.BalanceSnapshot, 0, len(ordered))
	earned, spent, expired := decimal.Zero, decimal.Zero, decimal.Zero
	for _, tx := range ordered {
		switch tx.Type {
		case shared.TransactionTypeEarned:
			earned = earned.Add(tx.Amount)
		case shared.TransactionTypeSpent:
			spent = spent.Add(tx.Amount)
		case shared.TransactionTypeExpired:
			expired = expired.Add(tx.Amount)
		}

		history = append(history, ledger.BalanceSnapshot{
			CustomerID:        customerID,
			TransactionID:     tx.TransactionID,
			Type:              tx.Type,
			Amount:            tx.Amount,
			CreatedAt:         tx.CreatedAt,
			CumulativeEarned:  earned,
			CumulativeSpent:   spent,
			CumulativeExpired: expired,
			Balance:           earned.Add(spent).Add(expired),
		})
	}
	return history
}
