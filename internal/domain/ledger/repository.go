package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SourceRepository reads and stores raw ingested batches
type SourceRepository interface {
	InsertBatch(ctx context.Context, batchID string, records []RawRecord) error
	ListByBatch(ctx context.Context, batchID string) ([]RawRecord, error)
}

// MatchedLedgerRepository persists the matched ledger of a run
type MatchedLedgerRepository interface {
	SaveRun(ctx context.Context, runID uuid.UUID, txs []Transaction) error
	ListByCustomer(ctx context.Context, runID uuid.UUID, customerID string) ([]Transaction, error)
	WithTx(tx pgx.Tx) MatchedLedgerRepository
}

// ReportRepository stores run reports, reason-coded reports and the balance time series
type ReportRepository interface {
	SaveRunSummary(ctx context.Context, summary *RunSummary) error
	GetRunSummary(ctx context.Context, runID uuid.UUID) (*RunSummary, error)
	GetLatestPromotableRun(ctx context.Context) (*RunSummary, error)

	SaveQuarantine(ctx context.Context, runID uuid.UUID, records []QuarantinedRecord) error
	GetQuarantine(ctx context.Context, runID uuid.UUID) ([]QuarantinedRecord, error)

	SaveExceptions(ctx context.Context, runID uuid.UUID, exceptions []CustomerException) error
	GetExceptions(ctx context.Context, runID uuid.UUID) ([]CustomerException, error)

	SaveSnapshots(ctx context.Context, runID uuid.UUID, snapshots []BalanceSnapshot) error
	GetHistory(ctx context.Context, runID uuid.UUID, customerID string, limit, offset int) ([]BalanceSnapshot, error)
	CountHistory(ctx context.Context, runID uuid.UUID, customerID string) (int64, error)
	BalanceAsOf(ctx context.Context, runID uuid.UUID, customerID string, asOf time.Time) (*BalanceSnapshot, error)

	SaveBalances(ctx context.Context, runID uuid.UUID, balances []CustomerBalance) error
	GetBalance(ctx context.Context, runID uuid.UUID, customerID string) (*CustomerBalance, error)
}
