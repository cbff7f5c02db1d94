package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Pipeline runs the four reconciliation stages over one in-memory batch
type Pipeline interface {
	Reconcile(ctx context.Context, records []ledger.RawRecord, cfg ledger.RunConfig) (*ledger.RunResult, error)
}

// RunService loads a requested batch, reconciles it and persists every output
type RunService interface {
	ProcessRun(ctx context.Context, request *shared.RunRequest) error
}

// SourceValidator partitions raw records into valid transactions and quarantined records
type SourceValidator interface {
	Validate(ctx context.Context, records []ledger.RawRecord, cfg ledger.RunConfig) (*ledger.ValidationResult, error)
}

// Matcher links spending records to earned records for a single customer
type Matcher interface {
	Match(customerID string, txs []ledger.Transaction) ledger.MatchOutcome
}

// ResultValidator checks matcher output before it is trusted downstream
type ResultValidator interface {
	ValidateStructure(customerID string, txs []ledger.Transaction, outcome *ledger.MatchOutcome) error
	CheckBalance(customerID string, txs []ledger.Transaction, history []ledger.BalanceSnapshot, tolerance decimal.Decimal) *ledger.BalanceException
	Summarize(outcome *ledger.MatchOutcome, mismatch *ledger.BalanceException) ledger.CustomerException
}

// HistoryBuilder computes the running balance time series of a single customer
type HistoryBuilder interface {
	Build(customerID string, txs []ledger.Transaction) []ledger.BalanceSnapshot
}

// CustomerExecutor fans independent customer units out and waits for them.
// It returns the number of units that ran to completion.
type CustomerExecutor interface {
	Execute(ctx context.Context, units int, fn func(i int)) (int, error)
}

// TxRunner runs a function inside a database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// LedgerWriter stores the matched ledger and the outbox message of a run inside one transaction
type LedgerWriter interface {
	WriteRun(ctx context.Context, tx pgx.Tx, result *ledger.RunResult) error
	WriteFailure(ctx context.Context, tx pgx.Tx, summary *ledger.RunSummary) error
}

// ReportRecorder stores the reporting artifacts of a run
type ReportRecorder interface {
	RecordResult(ctx context.Context, result *ledger.RunResult) error
	RecordFailure(ctx context.Context, result *ledger.RunResult) error
	IsProcessed(ctx context.Context, request *shared.RunRequest) (bool, error)
}
