package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rewards-reconciler/internal/api_gateway/service"
)

// BatchHandler handles HTTP requests for raw batch ingestion
type BatchHandler struct {
	batchService service.BatchService
	logger       *slog.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(logger *slog.Logger, batchService service.BatchService) *BatchHandler {
	return &BatchHandler{
		batchService: batchService,
		logger:       logger,
	}
}

// Ingest stores a raw batch. Rows are not validated here: a malformed row
// is the reconciler's to quarantine, so only the envelope is checked.
func (h *BatchHandler) Ingest(c *gin.Context) {
	var req IngestBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if req.BatchID == "" {
		req.BatchID = uuid.New().String()
	}

	if err := h.batchService.IngestBatch(c.Request.Context(), req.BatchID, toRawRecords(req.Records)); err != nil {
		RespondServiceError(c, h.logger, "ingest_batch", err)
		return
	}

	RespondCreated(c, IngestBatchResponse{
		BatchID: req.BatchID,
		Records: len(req.Records),
	})
}
