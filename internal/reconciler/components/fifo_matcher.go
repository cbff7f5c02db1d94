package components

import (
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/rewards-reconciler/internal/reconciler/service"
)

// FIFOMatcher pairs each Spent/Expired record with the oldest unconsumed Earned
// record of the same customer that is not newer than the spend.
// Pairing is strictly one to one and ignores amounts.
type FIFOMatcher struct{}

func NewFIFOMatcher() service.Matcher {
	return FIFOMatcher{}
}

// Match never mutates txs; the annotated ledger in the outcome is a copy
func (FIFOMatcher) Match(customerID string, txs []ledger.Transaction) ledger.MatchOutcome {
	annotated := make([]ledger.Transaction, len(txs))
	copy(annotated, txs)
	for i := range annotated {
		annotated[i].RedeemID = nil
		annotated[i].ConsumedBy = nil
	}
	ledger.SortChronologically(annotated)

	// Both queues are index lists into annotated, already in (created_at, id) order
	earned := make([]int, 0, len(annotated))
	spends := make([]int, 0, len(annotated))
	for i, tx := range annotated {
		if tx.Type == shared.TransactionTypeEarned {
			earned = append(earned, i)
		} else {
			spends = append(spends, i)
		}
	}

	outcome := ledger.MatchOutcome{
		CustomerID: customerID,
		Matches:    make([]ledger.Match, 0, len(spends)),
		Orphans:    make([]ledger.Orphan, 0),
		Unconsumed: make([]ledger.Transaction, 0),
	}

	// Consumed earned records always form a prefix of the queue, so the
	// cursor is the earliest unconsumed one.
	cursor := 0
	for _, si := range spends {
		spend := &annotated[si]
		if cursor < len(earned) && !annotated[earned[cursor]].CreatedAt.After(spend.CreatedAt) {
			earn := &annotated[earned[cursor]]
			earnedID, spendID := earn.TransactionID, spend.TransactionID
			spend.RedeemID = &earnedID
			earn.ConsumedBy = &spendID
			outcome.Matches = append(outcome.Matches, ledger.Match{EarnedID: earnedID, SpendID: spendID})
			cursor++
			continue
		}
		outcome.Orphans = append(outcome.Orphans, ledger.Orphan{
			Transaction: *spend,
			Reason:      shared.ReasonInsufficientEarnedBalance,
		})
	}

	for _, ei := range earned[cursor:] {
		outcome.Unconsumed = append(outcome.Unconsumed, annotated[ei])
	}
	outcome.Ledger = annotated

	return outcome
}
