package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rewards-reconciler/internal/domain/outbox"
	"github.com/rewards-reconciler/internal/platform/messaging/producers"
)

// ResultPublisher publishes outbox run summaries to the result topic
type ResultPublisher interface {
	PublishResult(ctx context.Context, message *outbox.Message) error
}

// ResultPublisherImpl implements ResultPublisher
type ResultPublisherImpl struct {
	outboxRepo outbox.Repository
	producer   producers.MessagePublisher
	logger     *slog.Logger
}

// NewResultPublisher creates a new publisher
func NewResultPublisher(
	outboxRepo outbox.Repository,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) ResultPublisher {
	return &ResultPublisherImpl{
		outboxRepo: outboxRepo,
		producer:   producer,
		logger:     logger,
	}
}

// PublishResult sends the stored summary keyed by run id and marks the message PROCESSED.
// A payload that cannot be decoded is marked FAILED_TO_PUBLISH straight away.
func (p *ResultPublisherImpl) PublishResult(ctx context.Context, message *outbox.Message) error {
	summary, err := message.GetRunSummary()
	if err != nil {
		p.logger.Error("Failed to unmarshal run summary from outbox payload",
			"outbox_id", message.ID, "run_id", message.RunID, "error", err,
		)
		message.MarkAsFailed()
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, message.Status); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger.With("run_id", summary.RunID.String(), "status", summary.Status)
	if summary.CorrelationID != "" {
		logger = logger.With("correlation_id", summary.CorrelationID)
	}

	logger.Info("Attempting to publish run summary", "outbox_id", message.ID)

	if err := p.producer.Publish(ctx, summary.RunID.String(), message.Payload); err != nil {
		logger.Error("Failed to publish run summary", "outbox_id", message.ID, "error", err)
		return fmt.Errorf("failed to publish run summary %s: %w", summary.RunID, err)
	}

	message.MarkAsProcessed()
	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, message.Status); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "error", err,
		)
		return fmt.Errorf("summary for run %s published, but failed to mark outbox %d as PROCESSED: %w", summary.RunID, message.ID, err)
	}

	logger.Info("Outbox message published and marked as PROCESSED", "outbox_id", message.ID)
	return nil
}
