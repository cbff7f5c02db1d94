package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/rewards-reconciler/internal/platform/messaging/producers"
	"github.com/rewards-reconciler/internal/reconciler/service"
)

// RunRequestHandler handles reconciliation run requests consumed from Kafka
type RunRequestHandler struct {
	runService service.RunService
	producer   producers.DeadLetterPublisher
	logger     *slog.Logger
}

// NewRunRequestHandler creates a new handler. producer may be nil when the DLQ is disabled.
func NewRunRequestHandler(
	logger *slog.Logger,
	runService service.RunService,
	producer producers.DeadLetterPublisher,
) *RunRequestHandler {
	return &RunRequestHandler{
		runService: runService,
		producer:   producer,
		logger:     logger,
	}
}

// HandleMessage processes Kafka messages. A nil return commits the offset.
func (h *RunRequestHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.RunRequest
	if err := json.Unmarshal(value, &request); err != nil {
		return h.reject(ctx, key, value, "Failed to unmarshal run request from Kafka message", err)
	}
	if err := request.Validate(); err != nil {
		return h.reject(ctx, key, value, "Run request failed validation", err)
	}

	logger := h.logger.With("run_id", request.RunID.String(), "batch_id", request.BatchID)
	if request.CorrelationID != "" {
		logger = logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received reconciliation run request")

	if err := h.runService.ProcessRun(ctx, &request); err != nil {
		logger.Error("Failed to process reconciliation run", "error", err)
		return fmt.Errorf("processing run %s failed: %w", request.RunID.String(), err)
	}

	logger.Info("Successfully processed reconciliation run")
	return nil
}

// reject parks an unprocessable message on the DLQ. Without a DLQ the error is returned so Kafka retries.
func (h *RunRequestHandler) reject(ctx context.Context, key, value []byte, msg string, cause error) error {
	h.logger.Error(msg,
		"error", cause,
		"message_key", string(key),
	)

	if h.producer != nil {
		dlqReason := fmt.Sprintf("%s: %s", msg, cause.Error())
		if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			h.logger.Info("Successfully published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
			return nil
		}
	}
	return fmt.Errorf("unprocessable run request: %w", cause)
}
