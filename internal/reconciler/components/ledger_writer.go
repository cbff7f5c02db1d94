package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/outbox"
	"github.com/rewards-reconciler/internal/reconciler/service"
)

type LedgerWriterImpl struct {
	ledgerRepo ledger.MatchedLedgerRepository
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewLedgerWriter(ledgerRepo ledger.MatchedLedgerRepository, outboxRepo outbox.Repository, logger *slog.Logger) service.LedgerWriter {
	return &LedgerWriterImpl{
		ledgerRepo: ledgerRepo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// WriteRun replaces the matched ledger of the run and enqueues its summary for publication
func (w *LedgerWriterImpl) WriteRun(ctx context.Context, tx pgx.Tx, result *ledger.RunResult) error {
	runID := result.Summary.RunID
	logger := w.logger.With("run_id", runID.String())

	if err := w.ledgerRepo.WithTx(tx).SaveRun(ctx, runID, result.Ledger); err != nil {
		logger.Error("Failed to save matched ledger", "records", len(result.Ledger), "error", err)
		return fmt.Errorf("failed to save matched ledger for run %s: %w", runID.String(), err)
	}

	if err := w.enqueue(ctx, tx, logger, &result.Summary); err != nil {
		return err
	}

	logger.Info("Matched ledger saved", "records", len(result.Ledger))
	return nil
}

// WriteFailure clears any ledger rows left by an earlier attempt and enqueues the failed summary
func (w *LedgerWriterImpl) WriteFailure(ctx context.Context, tx pgx.Tx, summary *ledger.RunSummary) error {
	logger := w.logger.With("run_id", summary.RunID.String())

	if err := w.ledgerRepo.WithTx(tx).SaveRun(ctx, summary.RunID, nil); err != nil {
		logger.Error("Failed to clear matched ledger", "error", err)
		return fmt.Errorf("failed to clear matched ledger for run %s: %w", summary.RunID.String(), err)
	}

	return w.enqueue(ctx, tx, logger, summary)
}

func (w *LedgerWriterImpl) enqueue(ctx context.Context, tx pgx.Tx, logger *slog.Logger, summary *ledger.RunSummary) error {
	outboxMessage, err := outbox.NewMessage(summary)
	if err != nil {
		logger.Error("Failed to create new outbox message (marshal payload)", "error", err)
		return fmt.Errorf("failed to create outbox message payload for run %s: %w", summary.RunID.String(), err)
	}

	if err = w.outboxRepo.WithTx(tx).Create(ctx, outboxMessage); err != nil {
		logger.Error("Failed to create outbox message", "error", err)
		return fmt.Errorf("failed to create outbox message for run %s: %w", summary.RunID.String(), err)
	}

	logger.Info("Outbox message created successfully", "outbox_id", outboxMessage.ID, "status", summary.Status)
	return nil
}
