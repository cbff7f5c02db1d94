package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RunSettings are the tunables copied into every RunConfig
type RunSettings struct {
	QuarantineThreshold float64
	BalanceTolerance    decimal.Decimal
}

type RunServiceImpl struct {
	txRunner     TxRunner
	source       ledger.SourceRepository
	pipeline     Pipeline
	ledgerWriter LedgerWriter
	recorder     ReportRecorder
	settings     RunSettings
	logger       *slog.Logger
}

func NewRunService(
	txRunner TxRunner,
	source ledger.SourceRepository,
	pipeline Pipeline,
	ledgerWriter LedgerWriter,
	recorder ReportRecorder,
	settings RunSettings,
	logger *slog.Logger,
) RunService {
	return &RunServiceImpl{
		txRunner:     txRunner,
		source:       source,
		pipeline:     pipeline,
		ledgerWriter: ledgerWriter,
		recorder:     recorder,
		settings:     settings,
		logger:       logger,
	}
}

// ProcessRun handles one reconciliation request end to end.
// Batch-level faults are recorded as FAILED runs and acknowledged; infrastructure
// errors and cancellation are returned so the request is retried.
func (s *RunServiceImpl) ProcessRun(ctx context.Context, request *shared.RunRequest) error {
	logger := s.logger.With("run_id", request.RunID.String(), "batch_id", request.BatchID)
	if request.CorrelationID != "" {
		logger = logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Processing reconciliation run")

	// 1. Check idempotency
	processed, err := s.recorder.IsProcessed(ctx, request)
	if err != nil {
		return err // Let Kafka retry
	}
	if processed {
		logger.Info("Run already processed, skipping")
		return nil
	}

	// 2. Load the batch
	records, err := s.source.ListByBatch(ctx, request.BatchID)
	if err != nil {
		if errors.Is(err, ledger.ErrBatchNotFound) || errors.Is(err, ledger.ErrEmptyBatch) {
			logger.Warn("Batch cannot be reconciled", "error", err)
			return s.recordFailure(ctx, logger, s.rejectedResult(request, err))
		}
		logger.Error("Failed to load batch", "error", err)
		return fmt.Errorf("failed to load batch %s: %w", request.BatchID, err)
	}

	// 3. Reconcile
	result, err := s.pipeline.Reconcile(ctx, records, s.runConfig(request))
	if err != nil {
		if _, isFault := ledger.FaultCodeOf(err); isFault && result != nil {
			return s.recordFailure(ctx, logger, result)
		}
		return err
	}

	// 4. Store the matched ledger and the outbox message atomically
	if err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return s.ledgerWriter.WriteRun(ctx, tx, result)
	}); err != nil {
		logger.Error("Failed to store matched ledger", "error", err)
		return fmt.Errorf("failed to store matched ledger for run %s: %w", request.RunID.String(), err)
	}

	// 5. Store reports; the run summary is written last and marks the run as processed
	if err := s.recorder.RecordResult(ctx, result); err != nil {
		logger.Error("Failed to record run reports", "error", err)
		return err
	}

	logger.Info("Reconciliation run stored", "status", result.Summary.Status)
	return nil
}

func (s *RunServiceImpl) runConfig(request *shared.RunRequest) ledger.RunConfig {
	return ledger.RunConfig{
		RunID:               request.RunID,
		BatchID:             request.BatchID,
		CorrelationID:       request.CorrelationID,
		QuarantineThreshold: s.settings.QuarantineThreshold,
		BalanceTolerance:    s.settings.BalanceTolerance,
	}
}

// rejectedResult builds a FAILED result for a batch that never reached the pipeline
func (s *RunServiceImpl) rejectedResult(request *shared.RunRequest, cause error) *ledger.RunResult {
	now := time.Now().UTC()
	return &ledger.RunResult{
		Summary: ledger.RunSummary{
			RunID:         request.RunID,
			BatchID:       request.BatchID,
			CorrelationID: request.CorrelationID,
			Status:        shared.RunStatusFailed,
			FaultDetail:   cause.Error(),
			StartedAt:     now,
			CompletedAt:   &now,
		},
	}
}

func (s *RunServiceImpl) recordFailure(ctx context.Context, logger *slog.Logger, result *ledger.RunResult) error {
	logger.Warn("Recording failed run",
		"fault_code", result.Summary.FaultCode,
		"fault_detail", result.Summary.FaultDetail,
	)

	if err := s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return s.ledgerWriter.WriteFailure(ctx, tx, &result.Summary)
	}); err != nil {
		logger.Error("Failed to store failed run outbox message", "error", err)
		return fmt.Errorf("failed to store failure for run %s: %w", result.Summary.RunID.String(), err)
	}

	if err := s.recorder.RecordFailure(ctx, result); err != nil {
		logger.Error("Failed to record failed run", "error", err)
		return err
	}
	return nil // Fatal faults are not retried
}
