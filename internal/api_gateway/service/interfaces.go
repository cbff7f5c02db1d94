package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
)

// BatchService defines the interface for raw batch ingestion
type BatchService interface {
	// IngestBatch stores the records exactly as delivered
	// Returns ErrBatchExists if the batch id was already ingested
	IngestBatch(ctx context.Context, batchID string, records []ledger.RawRecord) error
}

// ReconciliationService defines the interface for triggering and inspecting runs
type ReconciliationService interface {
	// TriggerRun publishes a run request for an ingested batch
	TriggerRun(ctx context.Context, batchID, correlationID string) (*shared.RunRequest, error)

	// GetRun returns ErrRunNotFound until the reconciler has recorded the run
	GetRun(ctx context.Context, runID uuid.UUID) (*ledger.RunSummary, error)

	GetQuarantine(ctx context.Context, runID uuid.UUID) ([]ledger.QuarantinedRecord, error)
	GetExceptions(ctx context.Context, runID uuid.UUID) ([]ledger.CustomerException, error)
}

// BalanceService defines the interface for customer balance queries
type BalanceService interface {
	// ResolveRun picks the run a query reads from. A nil run id selects the
	// latest completed run; a failed run is rejected with ErrRunHasNoOutputs.
	ResolveRun(ctx context.Context, runID *uuid.UUID) (*ledger.RunSummary, error)

	GetBalance(ctx context.Context, runID uuid.UUID, customerID string) (*ledger.CustomerBalance, error)

	// GetBalanceAsOf returns the last snapshot at or before asOf
	GetBalanceAsOf(ctx context.Context, runID uuid.UUID, customerID string, asOf time.Time) (*ledger.BalanceSnapshot, error)

	// GetHistory returns one page of the balance time series and the total snapshot count
	GetHistory(ctx context.Context, runID uuid.UUID, customerID string, page, perPage int) ([]ledger.BalanceSnapshot, int64, error)

	GetLedger(ctx context.Context, runID uuid.UUID, customerID string) ([]ledger.Transaction, error)
}
