package service

import (
	"context"
	"log/slog"

	"github.com/rewards-reconciler/internal/domain/ledger"
)

// BatchServiceImpl implements the BatchService interface
type BatchServiceImpl struct {
	sourceRepo ledger.SourceRepository
	logger     *slog.Logger
}

// NewBatchService creates a new batch service
func NewBatchService(logger *slog.Logger, sourceRepo ledger.SourceRepository) BatchService {
	return &BatchServiceImpl{
		sourceRepo: sourceRepo,
		logger:     logger,
	}
}

// IngestBatch numbers the rows in delivery order and stores them untouched.
// Validation happens in the reconciler so that bad rows end up in the quarantine report.
func (s *BatchServiceImpl) IngestBatch(ctx context.Context, batchID string, records []ledger.RawRecord) error {
	numbered := make([]ledger.RawRecord, len(records))
	for i, rec := range records {
		rec.RowNumber = i + 1
		numbered[i] = rec
	}

	if err := s.sourceRepo.InsertBatch(ctx, batchID, numbered); err != nil {
		s.logger.Error("Failed to ingest batch", "batch_id", batchID, "records", len(records), "error", err)
		return err
	}

	s.logger.Info("Batch ingested", "batch_id", batchID, "records", len(records))
	return nil
}
