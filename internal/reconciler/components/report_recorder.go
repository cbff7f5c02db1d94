package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/rewards-reconciler/internal/reconciler/service"
)

type ReportRecorderImpl struct {
	reportRepo ledger.ReportRepository
	logger     *slog.Logger
}

func NewReportRecorder(reportRepo ledger.ReportRepository, logger *slog.Logger) service.ReportRecorder {
	return &ReportRecorderImpl{
		reportRepo: reportRepo,
		logger:     logger,
	}
}

// RecordResult stores every report of a finished run. The summary goes last so
// that a partially recorded run is reprocessed rather than skipped.
func (r *ReportRecorderImpl) RecordResult(ctx context.Context, result *ledger.RunResult) error {
	runID := result.Summary.RunID
	logger := r.logger.With("run_id", runID.String())

	if err := r.reportRepo.SaveQuarantine(ctx, runID, result.Quarantined); err != nil {
		logger.Error("Failed to save quarantine report", "error", err)
		return fmt.Errorf("failed to save quarantine report: %w", err)
	}
	if err := r.reportRepo.SaveExceptions(ctx, runID, result.Exceptions); err != nil {
		logger.Error("Failed to save exception report", "error", err)
		return fmt.Errorf("failed to save exception report: %w", err)
	}
	if err := r.reportRepo.SaveSnapshots(ctx, runID, result.Snapshots); err != nil {
		logger.Error("Failed to save balance history", "error", err)
		return fmt.Errorf("failed to save balance history: %w", err)
	}
	if err := r.reportRepo.SaveBalances(ctx, runID, result.Balances); err != nil {
		logger.Error("Failed to save current balances", "error", err)
		return fmt.Errorf("failed to save current balances: %w", err)
	}
	if err := r.reportRepo.SaveRunSummary(ctx, &result.Summary); err != nil {
		logger.Error("Failed to save run summary", "error", err)
		return fmt.Errorf("failed to save run summary: %w", err)
	}

	logger.Info("Run reports recorded",
		"status", result.Summary.Status,
		"quarantined", len(result.Quarantined),
		"exceptions", len(result.Exceptions),
		"snapshots", len(result.Snapshots),
	)
	return nil
}

// RecordFailure stores the quarantine report and the FAILED summary. Exceptions,
// snapshots and balances left by an earlier attempt of the same run are cleared
// so a failed run never serves balances.
func (r *ReportRecorderImpl) RecordFailure(ctx context.Context, result *ledger.RunResult) error {
	runID := result.Summary.RunID
	logger := r.logger.With("run_id", runID.String())

	logger.Info("Recording failed run", "fault_code", result.Summary.FaultCode)

	if err := r.reportRepo.SaveQuarantine(ctx, runID, result.Quarantined); err != nil {
		logger.Error("Failed to save quarantine report for failed run", "error", err)
		return fmt.Errorf("failed to save quarantine report: %w", err)
	}
	if err := r.reportRepo.SaveExceptions(ctx, runID, nil); err != nil {
		logger.Error("Failed to clear exception report for failed run", "error", err)
		return fmt.Errorf("failed to clear exception report: %w", err)
	}
	if err := r.reportRepo.SaveSnapshots(ctx, runID, nil); err != nil {
		logger.Error("Failed to clear balance history for failed run", "error", err)
		return fmt.Errorf("failed to clear balance history: %w", err)
	}
	if err := r.reportRepo.SaveBalances(ctx, runID, nil); err != nil {
		logger.Error("Failed to clear current balances for failed run", "error", err)
		return fmt.Errorf("failed to clear current balances: %w", err)
	}
	if err := r.reportRepo.SaveRunSummary(ctx, &result.Summary); err != nil {
		logger.Error("Failed to save failed run summary", "error", err)
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}

// IsProcessed checks if the run already reached a terminal status
func (r *ReportRecorderImpl) IsProcessed(ctx context.Context, request *shared.RunRequest) (bool, error) {
	summary, err := r.reportRepo.GetRunSummary(ctx, request.RunID)
	if err != nil {
		if errors.Is(err, ledger.ErrRunNotFound{}) {
			return false, nil
		}
		r.logger.Error("Failed to check run summary for idempotency", "run_id", request.RunID.String(), "error", err)
		return false, fmt.Errorf("idempotency check failed for run %s: %w", request.RunID.String(), err)
	}

	switch summary.Status {
	case shared.RunStatusCompleted, shared.RunStatusFlagged, shared.RunStatusFailed:
		r.logger.Info("Run already processed (idempotency)", "run_id", request.RunID.String(), "status", summary.Status)
		return true, nil
	}
	return false, nil
}
