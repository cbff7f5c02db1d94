package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RunConfig carries everything a single reconciliation run needs.
// It is passed explicitly into each stage; there is no process-wide run state.
type RunConfig struct {
	RunID               uuid.UUID
	BatchID             string
	CorrelationID       string
	QuarantineThreshold float64         // maximum tolerated quarantined/input ratio
	BalanceTolerance    decimal.Decimal // absolute drift tolerated by the balance equation
}

// BalanceException reports a customer whose final running balance disagrees with the signed sum
type BalanceException struct {
	CustomerID      string            `json:"customer_id"`
	Reason          shared.ReasonCode `json:"reason"`
	ExpectedBalance decimal.Decimal   `json:"expected_balance"`
	ComputedBalance decimal.Decimal   `json:"computed_balance"`
	Difference      decimal.Decimal   `json:"difference"`
	Tolerance       decimal.Decimal   `json:"tolerance"`
}

// CustomerException is one row of the exception report
type CustomerException struct {
	CustomerID       string            `json:"customer_id"`
	OrphanCount      int               `json:"orphan_count"`
	OrphanAmount     decimal.Decimal   `json:"orphan_amount"`
	OrphanIDs        []string          `json:"orphan_ids,omitempty"`
	UnconsumedCount  int               `json:"unconsumed_count"`
	UnconsumedAmount decimal.Decimal   `json:"unconsumed_amount"`
	UnconsumedIDs    []string          `json:"unconsumed_ids,omitempty"`
	BalanceMismatch  *BalanceException `json:"balance_mismatch,omitempty"`
}

// IsEmpty reports whether the customer has nothing worth reporting
func (e CustomerException) IsEmpty() bool {
	return e.OrphanCount == 0 && e.UnconsumedCount == 0 && e.BalanceMismatch == nil
}

// RunSummary is the run report persisted for reporting and published to downstream consumers
type RunSummary struct {
	RunID              uuid.UUID        `json:"run_id"`
	BatchID            string           `json:"batch_id"`
	CorrelationID      string           `json:"correlation_id,omitempty"`
	Status             shared.RunStatus `json:"status"`
	InputRecords       int              `json:"input_records"`
	ValidRecords       int              `json:"valid_records"`
	QuarantinedRecords int              `json:"quarantined_records"`
	Customers          int              `json:"customers"`
	Matches            int              `json:"matches"`
	Orphans            int              `json:"orphans"`
	Unconsumed         int              `json:"unconsumed"`
	BalanceMismatches  int              `json:"balance_mismatches"`
	FaultCode          shared.FaultCode `json:"fault_code,omitempty"`
	FaultDetail        string           `json:"fault_detail,omitempty"`
	StartedAt          time.Time        `json:"started_at"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
}

// Promotable reports whether the run's outputs may be trusted downstream
func (s *RunSummary) Promotable() bool {
	return s.Status == shared.RunStatusCompleted
}

// RunResult holds every in-memory output of a reconciliation run
type RunResult struct {
	Summary     RunSummary
	Quarantined []QuarantinedRecord
	Outcomes    []MatchOutcome      // one per customer, sorted by customer id
	Ledger      []Transaction       // matched ledger sorted by (customer_id, created_at, transaction_id)
	Snapshots   []BalanceSnapshot   // balance time series in the same order
	Balances    []CustomerBalance   // current balance per customer
	Exceptions  []CustomerException // customers with orphans, surplus or balance mismatches
}
