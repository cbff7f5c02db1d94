package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/rewards-reconciler/internal/platform/messaging/producers"
)

// ReconciliationServiceImpl implements the ReconciliationService interface
type ReconciliationServiceImpl struct {
	reportRepo ledger.ReportRepository
	producer   producers.MessagePublisher
	logger     *slog.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(logger *slog.Logger, reportRepo ledger.ReportRepository, producer producers.MessagePublisher) ReconciliationService {
	return &ReconciliationServiceImpl{
		reportRepo: reportRepo,
		producer:   producer,
		logger:     logger,
	}
}

// TriggerRun assigns a run id and hands the request to the reconciler over Kafka.
// The run is processed asynchronously; callers poll GetRun for the outcome.
func (s *ReconciliationServiceImpl) TriggerRun(ctx context.Context, batchID, correlationID string) (*shared.RunRequest, error) {
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	request := &shared.RunRequest{
		RunID:         uuid.New(),
		BatchID:       batchID,
		CorrelationID: correlationID,
		RequestedAt:   time.Now().UTC(),
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}

	// Keyed by batch so that repeated runs of one batch are consumed in order
	if err := s.producer.Publish(ctx, batchID, request); err != nil {
		s.logger.Error("Failed to publish run request",
			"run_id", request.RunID.String(),
			"batch_id", batchID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Run request published",
		"run_id", request.RunID.String(),
		"batch_id", batchID,
		"correlation_id", correlationID,
	)
	return request, nil
}

func (s *ReconciliationServiceImpl) GetRun(ctx context.Context, runID uuid.UUID) (*ledger.RunSummary, error) {
	return s.reportRepo.GetRunSummary(ctx, runID)
}

// GetQuarantine returns ErrRunNotFound for unknown runs instead of an empty report
func (s *ReconciliationServiceImpl) GetQuarantine(ctx context.Context, runID uuid.UUID) ([]ledger.QuarantinedRecord, error) {
	if _, err := s.reportRepo.GetRunSummary(ctx, runID); err != nil {
		return nil, err
	}
	return s.reportRepo.GetQuarantine(ctx, runID)
}

// GetExceptions returns ErrRunNotFound for unknown runs instead of an empty report
func (s *ReconciliationServiceImpl) GetExceptions(ctx context.Context, runID uuid.UUID) ([]ledger.CustomerException, error) {
	if _, err := s.reportRepo.GetRunSummary(ctx, runID); err != nil {
		return nil, err
	}
	return s.reportRepo.GetExceptions(ctx, runID)
}
