package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/rewards-reconciler/internal/logger"
)

// PipelineService runs source validation, FIFO matching, result validation and
// balance history in strict stage order. Stages 2 to 4 fan out per customer.
type PipelineService struct {
	validator       SourceValidator
	matcher         Matcher
	resultValidator ResultValidator
	historyBuilder  HistoryBuilder
	executor        CustomerExecutor
	logger          *slog.Logger
}

func NewPipelineService(
	validator SourceValidator,
	matcher Matcher,
	resultValidator ResultValidator,
	historyBuilder HistoryBuilder,
	executor CustomerExecutor,
	logger *slog.Logger,
) *PipelineService {
	return &PipelineService{
		validator:       validator,
		matcher:         matcher,
		resultValidator: resultValidator,
		historyBuilder:  historyBuilder,
		executor:        executor,
		logger:          logger,
	}
}

// Reconcile processes one batch. On a batch-level fault it returns the fault together
// with a FAILED result carrying whatever reports were produced before the fault.
func (s *PipelineService) Reconcile(ctx context.Context, records []ledger.RawRecord, cfg ledger.RunConfig) (*ledger.RunResult, error) {
	logger := logger.ForRun(s.logger, cfg.RunID.String(), cfg.BatchID, cfg.CorrelationID)

	result := &ledger.RunResult{
		Summary: ledger.RunSummary{
			RunID:         cfg.RunID,
			BatchID:       cfg.BatchID,
			CorrelationID: cfg.CorrelationID,
			Status:        shared.RunStatusPending,
			InputRecords:  len(records),
			StartedAt:     time.Now().UTC(),
		},
	}

	logger.Info("Starting reconciliation", "input_records", len(records))

	// 1. Source validation
	validation, err := s.validator.Validate(ctx, records, cfg)
	if validation != nil {
		result.Quarantined = validation.Quarantined
		result.Summary.ValidRecords = len(validation.Valid)
		result.Summary.QuarantinedRecords = len(validation.Quarantined)
	}
	if err != nil {
		logger.Error("Source validation halted the batch", "error", err)
		if _, isFault := ledger.FaultCodeOf(err); !isFault {
			return nil, err
		}
		return s.fail(result, err), err
	}

	customerIDs, partitions := ledger.PartitionByCustomer(validation.Valid)
	result.Summary.Customers = len(customerIDs)

	// 2. FIFO matching
	outcomes := make([]ledger.MatchOutcome, len(customerIDs))
	if _, err := s.executor.Execute(ctx, len(customerIDs), func(i int) {
		id := customerIDs[i]
		outcomes[i] = s.matcher.Match(id, partitions[id])
	}); err != nil {
		logger.Error("Matching stage did not complete", "error", err)
		return nil, fmt.Errorf("matching stage: %w", err)
	}

	// 3. Structural validation; faults are reported in customer order
	faults := make([]error, len(customerIDs))
	if _, err := s.executor.Execute(ctx, len(customerIDs), func(i int) {
		id := customerIDs[i]
		faults[i] = s.resultValidator.ValidateStructure(id, partitions[id], &outcomes[i])
	}); err != nil {
		logger.Error("Result validation stage did not complete", "error", err)
		return nil, fmt.Errorf("result validation stage: %w", err)
	}
	for i, fault := range faults {
		if fault != nil {
			logger.Error("Matcher structural fault", "customer_id", customerIDs[i], "error", fault)
			return s.fail(result, fault), fault
		}
	}

	// 4. Balance history
	histories := make([][]ledger.BalanceSnapshot, len(customerIDs))
	if _, err := s.executor.Execute(ctx, len(customerIDs), func(i int) {
		id := customerIDs[i]
		histories[i] = s.historyBuilder.Build(id, partitions[id])
	}); err != nil {
		logger.Error("Balance history stage did not complete", "error", err)
		return nil, fmt.Errorf("balance history stage: %w", err)
	}

	// Balance equation and exception report
	for i, id := range customerIDs {
		outcome := &outcomes[i]
		mismatch := s.resultValidator.CheckBalance(id, partitions[id], histories[i], cfg.BalanceTolerance)
		if mismatch != nil {
			result.Summary.BalanceMismatches++
			logger.Warn("Balance equation mismatch",
				"customer_id", id,
				"expected", mismatch.ExpectedBalance.String(),
				"computed", mismatch.ComputedBalance.String(),
			)
		}
		if exception := s.resultValidator.Summarize(outcome, mismatch); !exception.IsEmpty() {
			result.Exceptions = append(result.Exceptions, exception)
		}

		result.Summary.Matches += len(outcome.Matches)
		result.Summary.Orphans += len(outcome.Orphans)
		result.Summary.Unconsumed += len(outcome.Unconsumed)

		result.Ledger = append(result.Ledger, outcome.Ledger...)
		result.Snapshots = append(result.Snapshots, histories[i]...)
		if balance, ok := ledger.CurrentBalance(histories[i]); ok {
			result.Balances = append(result.Balances, balance)
		}
	}
	result.Outcomes = outcomes

	result.Summary.Status = shared.RunStatusCompleted
	if result.Summary.BalanceMismatches > 0 {
		result.Summary.Status = shared.RunStatusFlagged
	}
	completedAt := time.Now().UTC()
	result.Summary.CompletedAt = &completedAt

	logger.Info("Reconciliation completed",
		"status", result.Summary.Status,
		"customers", result.Summary.Customers,
		"valid_records", result.Summary.ValidRecords,
		"quarantined_records", result.Summary.QuarantinedRecords,
		"matches", result.Summary.Matches,
		"orphans", result.Summary.Orphans,
		"unconsumed", result.Summary.Unconsumed,
		"balance_mismatches", result.Summary.BalanceMismatches,
	)
	return result, nil
}

func (s *PipelineService) fail(result *ledger.RunResult, err error) *ledger.RunResult {
	result.Summary.Status = shared.RunStatusFailed
	if code, ok := ledger.FaultCodeOf(err); ok {
		result.Summary.FaultCode = code
	}
	result.Summary.FaultDetail = err.Error()
	completedAt := time.Now().UTC()
	result.Summary.CompletedAt = &completedAt
	return result
}
