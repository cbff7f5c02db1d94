package shared

import "strings"

// TransactionType defines the kinds of rewards ledger events
type TransactionType string

const (
	TransactionTypeEarned  TransactionType = "Earned"
	TransactionTypeSpent   TransactionType = "Spent"
	TransactionTypeExpired TransactionType = "Expired"
)

// ParseTransactionType matches a raw type value case-insensitively
func ParseTransactionType(raw string) (TransactionType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "earned":
		return TransactionTypeEarned, true
	case "spent":
		return TransactionTypeSpent, true
	case "expired":
		return TransactionTypeExpired, true
	}
	return "", false
}

// IsConsumption reports whether the type draws down earned balance
func (t TransactionType) IsConsumption() bool {
	return t == TransactionTypeSpent || t == TransactionTypeExpired
}

// ReasonCode defines per-record data quality and business outcome codes
type ReasonCode string

const (
	ReasonMissingField              ReasonCode = "MISSING_FIELD"
	ReasonBadType                   ReasonCode = "BAD_TYPE"
	ReasonSignViolation             ReasonCode = "SIGN_VIOLATION"
	ReasonDuplicateID               ReasonCode = "DUPLICATE_ID"
	ReasonInsufficientEarnedBalance ReasonCode = "INSUFFICIENT_EARNED_BALANCE"
	ReasonUnconsumedEarned          ReasonCode = "UNCONSUMED_EARNED_BALANCE"
	ReasonBalanceEquationMismatch   ReasonCode = "BALANCE_EQUATION_MISMATCH"
)

// FaultCode defines batch-level faults that halt a run
type FaultCode string

const (
	FaultSchemaValidation  FaultCode = "SCHEMA_VALIDATION_FAULT"
	FaultRedeemIDIntegrity FaultCode = "REDEEMID_INTEGRITY_FAULT"
	FaultChronology        FaultCode = "CHRONOLOGY_FAULT"
	FaultConservation      FaultCode = "CONSERVATION_FAULT"
)

// RunStatus defines reconciliation run states
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFlagged   RunStatus = "FLAGGED"
	RunStatusFailed    RunStatus = "FAILED"
)

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
