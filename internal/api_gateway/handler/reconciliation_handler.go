package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rewards-reconciler/internal/api_gateway/middleware"
	"github.com/rewards-reconciler/internal/api_gateway/service"
	"github.com/rewards-reconciler/internal/domain/shared"
)

// ReconciliationHandler handles HTTP requests for reconciliation runs
type ReconciliationHandler struct {
	reconciliationService service.ReconciliationService
	logger                *slog.Logger
}

// NewReconciliationHandler creates a new reconciliation handler
func NewReconciliationHandler(logger *slog.Logger, reconciliationService service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
		logger:                logger,
	}
}

// Trigger requests an asynchronous run over an ingested batch
func (h *ReconciliationHandler) Trigger(c *gin.Context) {
	var req TriggerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	runRequest, err := h.reconciliationService.TriggerRun(c.Request.Context(), req.BatchID, middleware.GetCorrelationID(c))
	if err != nil {
		RespondServiceError(c, h.logger, "trigger_run", err)
		return
	}

	RespondAccepted(c, TriggerRunResponse{
		RunID:         runRequest.RunID.String(),
		BatchID:       runRequest.BatchID,
		CorrelationID: runRequest.CorrelationID,
		Status:        string(shared.RunStatusPending),
	})
}

// GetByID returns the run report, 404 until the reconciler has recorded it
func (h *ReconciliationHandler) GetByID(c *gin.Context) {
	runID, ok := h.runIDParam(c)
	if !ok {
		return
	}

	summary, err := h.reconciliationService.GetRun(c.Request.Context(), runID)
	if err != nil {
		RespondServiceError(c, h.logger, "get_run", err)
		return
	}
	RespondOK(c, summary)
}

// GetQuarantine returns the reason-coded quarantine report of a run
func (h *ReconciliationHandler) GetQuarantine(c *gin.Context) {
	runID, ok := h.runIDParam(c)
	if !ok {
		return
	}

	records, err := h.reconciliationService.GetQuarantine(c.Request.Context(), runID)
	if err != nil {
		RespondServiceError(c, h.logger, "get_quarantine", err)
		return
	}
	RespondOK(c, records)
}

// GetExceptions returns orphans, unconsumed surplus and balance mismatches per customer
func (h *ReconciliationHandler) GetExceptions(c *gin.Context) {
	runID, ok := h.runIDParam(c)
	if !ok {
		return
	}

	exceptions, err := h.reconciliationService.GetExceptions(c.Request.Context(), runID)
	if err != nil {
		RespondServiceError(c, h.logger, "get_exceptions", err)
		return
	}
	RespondOK(c, exceptions)
}

func (h *ReconciliationHandler) runIDParam(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid run ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid run ID")
		return uuid.Nil, false
	}
	return id, true
}
