package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
)

var (
	ErrRunHasNoOutputs = errors.New("reconciliation run failed and has no balances")
	ErrPageOutOfRange  = errors.New("history page out of range")
)

// MaxHistoryPage bounds page numbers so the row offset cannot overflow
const MaxHistoryPage = 100000

// BalanceServiceImpl implements the BalanceService interface
type BalanceServiceImpl struct {
	reportRepo ledger.ReportRepository
	ledgerRepo ledger.MatchedLedgerRepository
	logger     *slog.Logger
}

// NewBalanceService creates a new balance service
func NewBalanceService(logger *slog.Logger, reportRepo ledger.ReportRepository, ledgerRepo ledger.MatchedLedgerRepository) BalanceService {
	return &BalanceServiceImpl{
		reportRepo: reportRepo,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

func (s *BalanceServiceImpl) ResolveRun(ctx context.Context, runID *uuid.UUID) (*ledger.RunSummary, error) {
	if runID == nil {
		return s.reportRepo.GetLatestPromotableRun(ctx)
	}

	summary, err := s.reportRepo.GetRunSummary(ctx, *runID)
	if err != nil {
		return nil, err
	}
	if summary.Status == shared.RunStatusFailed {
		s.logger.Info("Balance query against failed run", "run_id", runID.String(), "fault_code", string(summary.FaultCode))
		return nil, ErrRunHasNoOutputs
	}
	return summary, nil
}

func (s *BalanceServiceImpl) GetBalance(ctx context.Context, runID uuid.UUID, customerID string) (*ledger.CustomerBalance, error) {
	return s.reportRepo.GetBalance(ctx, runID, customerID)
}

func (s *BalanceServiceImpl) GetBalanceAsOf(ctx context.Context, runID uuid.UUID, customerID string, asOf time.Time) (*ledger.BalanceSnapshot, error) {
	return s.reportRepo.BalanceAsOf(ctx, runID, customerID, asOf.UTC())
}

// GetHistory returns entries, total count, and any error
func (s *BalanceServiceImpl) GetHistory(ctx context.Context, runID uuid.UUID, customerID string, page, perPage int) ([]ledger.BalanceSnapshot, int64, error) {
	if page < 1 || page > MaxHistoryPage || perPage < 1 {
		return nil, 0, ErrPageOutOfRange
	}
	offset := (page - 1) * perPage

	history, err := s.reportRepo.GetHistory(ctx, runID, customerID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.reportRepo.CountHistory(ctx, runID, customerID)
	if err != nil {
		return nil, 0, err
	}

	return history, total, nil
}

func (s *BalanceServiceImpl) GetLedger(ctx context.Context, runID uuid.UUID, customerID string) ([]ledger.Transaction, error) {
	return s.ledgerRepo.ListByCustomer(ctx, runID, customerID)
}
