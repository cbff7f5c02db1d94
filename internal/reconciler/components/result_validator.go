package components

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/rewards-reconciler/internal/reconciler/service"
	"github.com/shopspring/decimal"
)

type ResultValidatorImpl struct {
	logger *slog.Logger
}

func NewResultValidator(logger *slog.Logger) service.ResultValidator {
	return &ResultValidatorImpl{
		logger: logger.With("component", "result_validator"),
	}
}

// ValidateStructure checks REDEEMID integrity, chronology and conservation of one
// customer's outcome against the validated input. Any violation is a StructuralFault.
func (v *ResultValidatorImpl) ValidateStructure(customerID string, txs []ledger.Transaction, outcome *ledger.MatchOutcome) error {
	byID := make(map[string]ledger.Transaction, len(txs))
	earnedCount, spendCount := 0, 0
	for _, tx := range txs {
		byID[tx.TransactionID] = tx
		if tx.Type == shared.TransactionTypeEarned {
			earnedCount++
		} else {
			spendCount++
		}
	}

	if err := v.checkIntegrity(customerID, byID, outcome); err != nil {
		return err
	}
	if err := v.checkChronology(customerID, byID, outcome); err != nil {
		return err
	}
	return v.checkConservation(customerID, earnedCount, spendCount, len(txs), outcome)
}

func (v *ResultValidatorImpl) checkIntegrity(customerID string, byID map[string]ledger.Transaction, outcome *ledger.MatchOutcome) error {
	fault := func(txID, format string, args ...any) error {
		return ledger.StructuralFault{
			Code:          shared.FaultRedeemIDIntegrity,
			CustomerID:    customerID,
			TransactionID: txID,
			Detail:        fmt.Sprintf(format, args...),
		}
	}

	referenced := make(map[string]string, len(outcome.Matches))
	for _, tx := range outcome.Ledger {
		if tx.RedeemID == nil {
			continue
		}
		if tx.Type == shared.TransactionTypeEarned {
			return fault(tx.TransactionID, "earned record carries redeem_id %s", *tx.RedeemID)
		}
		target, ok := byID[*tx.RedeemID]
		if !ok {
			return fault(tx.TransactionID, "redeem_id %s does not resolve to a record of the customer", *tx.RedeemID)
		}
		if target.Type != shared.TransactionTypeEarned {
			return fault(tx.TransactionID, "redeem_id %s references a %s record", *tx.RedeemID, target.Type)
		}
		if target.CustomerID != customerID || tx.CustomerID != customerID {
			return fault(tx.TransactionID, "redeem_id %s crosses customers", *tx.RedeemID)
		}
		if previous, dup := referenced[*tx.RedeemID]; dup {
			return fault(tx.TransactionID, "earned record %s already consumed by %s", *tx.RedeemID, previous)
		}
		referenced[*tx.RedeemID] = tx.TransactionID
	}

	if len(referenced) != len(outcome.Matches) {
		return fault("", "%d redeem links but %d matches", len(referenced), len(outcome.Matches))
	}
	for _, m := range outcome.Matches {
		if spendID, ok := referenced[m.EarnedID]; !ok || spendID != m.SpendID {
			return fault(m.SpendID, "match %s -> %s is not reflected in the ledger", m.EarnedID, m.SpendID)
		}
	}
	for _, orphan := range outcome.Orphans {
		if orphan.Transaction.RedeemID != nil {
			return fault(orphan.Transaction.TransactionID, "orphan carries redeem_id %s", *orphan.Transaction.RedeemID)
		}
	}
	return nil
}

func (v *ResultValidatorImpl) checkChronology(customerID string, byID map[string]ledger.Transaction, outcome *ledger.MatchOutcome) error {
	for _, m := range outcome.Matches {
		earned, spend := byID[m.EarnedID], byID[m.SpendID]
		if earned.CreatedAt.After(spend.CreatedAt) {
			return ledger.StructuralFault{
				Code:          shared.FaultChronology,
				CustomerID:    customerID,
				TransactionID: m.SpendID,
				Detail: fmt.Sprintf("earned %s at %s is newer than spend at %s",
					m.EarnedID, earned.CreatedAt.Format(time.RFC3339Nano), spend.CreatedAt.Format(time.RFC3339Nano)),
			}
		}
	}
	return nil
}

func (v *ResultValidatorImpl) checkConservation(customerID string, earnedCount, spendCount, total int, outcome *ledger.MatchOutcome) error {
	fault := func(format string, args ...any) error {
		return ledger.StructuralFault{
			Code:       shared.FaultConservation,
			CustomerID: customerID,
			Detail:     fmt.Sprintf(format, args...),
		}
	}

	if len(outcome.Ledger) != total {
		return fault("ledger holds %d records, input holds %d", len(outcome.Ledger), total)
	}
	if matched := len(outcome.Matches) + len(outcome.Orphans); matched != spendCount {
		return fault("matched %d + orphans %d != spending records %d", len(outcome.Matches), len(outcome.Orphans), spendCount)
	}
	if consumed := len(outcome.Matches) + len(outcome.Unconsumed); consumed != earnedCount {
		return fault("consumed %d + unconsumed %d != earned records %d", len(outcome.Matches), len(outcome.Unconsumed), earnedCount)
	}
	return nil
}

// CheckBalance compares the signed sum of all amounts with the final running balance
func (v *ResultValidatorImpl) CheckBalance(customerID string, txs []ledger.Transaction, history []ledger.BalanceSnapshot, tolerance decimal.Decimal) *ledger.BalanceException {
	expected := ledger.SignedTotal(txs)
	computed := decimal.Zero
	if len(history) > 0 {
		computed = history[len(history)-1].Balance
	}

	difference := expected.Sub(computed).Abs()
	if difference.LessThanOrEqual(tolerance) {
		return nil
	}

	v.logger.Warn("Balance equation out of tolerance",
		"customer_id", customerID,
		"difference", difference.String(),
		"tolerance", tolerance.String(),
	)
	return &ledger.BalanceException{
		CustomerID:      customerID,
		Reason:          shared.ReasonBalanceEquationMismatch,
		ExpectedBalance: expected,
		ComputedBalance: computed,
		Difference:      difference,
		Tolerance:       tolerance,
	}
}

// Summarize builds the exception report row for one customer
func (v *ResultValidatorImpl) Summarize(outcome *ledger.MatchOutcome, mismatch *ledger.BalanceException) ledger.CustomerException {
	exception := ledger.CustomerException{
		CustomerID:       outcome.CustomerID,
		OrphanCount:      len(outcome.Orphans),
		OrphanAmount:     outcome.OrphanAmount(),
		UnconsumedCount:  len(outcome.Unconsumed),
		UnconsumedAmount: outcome.UnconsumedAmount(),
		BalanceMismatch:  mismatch,
	}
	for _, orphan := range outcome.Orphans {
		exception.OrphanIDs = append(exception.OrphanIDs, orphan.Transaction.TransactionID)
	}
	for _, tx := range outcome.Unconsumed {
		exception.UnconsumedIDs = append(exception.UnconsumedIDs, tx.TransactionID)
	}
	return exception
}
