package handler

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rewards-reconciler/internal/api_gateway/service"
	"github.com/rewards-reconciler/internal/domain/ledger"
)

const dateLayout = "2006-01-02"

var errInvalidAsOf = errors.New("as_of must be an RFC3339 timestamp or a YYYY-MM-DD date")

// CustomerHandler handles HTTP requests for customer balances and ledgers
type CustomerHandler struct {
	balanceService  service.BalanceService
	historyPageSize int
	logger          *slog.Logger
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(logger *slog.Logger, balanceService service.BalanceService, historyPageSize int) *CustomerHandler {
	return &CustomerHandler{
		balanceService:  balanceService,
		historyPageSize: historyPageSize,
		logger:          logger,
	}
}

// GetBalance returns the current balance, or the balance as of a point in time
// when as_of is given. as_of never interpolates between transactions.
func (h *CustomerHandler) GetBalance(c *gin.Context) {
	customerID := c.Param("id")

	var query BalanceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	var asOf *time.Time
	if query.AsOf != "" {
		t, err := parseAsOf(query.AsOf)
		if err != nil {
			RespondBadRequest(c, err.Error())
			return
		}
		asOf = &t
	}

	run, ok := h.resolveRun(c, query.RunID)
	if !ok {
		return
	}

	if asOf == nil {
		balance, err := h.balanceService.GetBalance(c.Request.Context(), run.RunID, customerID)
		if err != nil {
			RespondServiceError(c, h.logger, "get_balance", err)
			return
		}
		RespondWithRunData(c, run, mapBalanceToResponse(balance))
		return
	}

	snapshot, err := h.balanceService.GetBalanceAsOf(c.Request.Context(), run.RunID, customerID, *asOf)
	if err != nil {
		RespondServiceError(c, h.logger, "get_balance_as_of", err)
		return
	}
	RespondWithRunData(c, run, mapSnapshotToResponse(snapshot))
}

// GetHistory returns the balance time series in chronological pages
func (h *CustomerHandler) GetHistory(c *gin.Context) {
	customerID := c.Param("id")

	var query HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}
	if query.PerPage == 0 {
		query.PerPage = h.historyPageSize
	}

	run, ok := h.resolveRun(c, query.RunID)
	if !ok {
		return
	}

	history, total, err := h.balanceService.GetHistory(c.Request.Context(), run.RunID, customerID, query.Page, query.PerPage)
	if err != nil {
		RespondServiceError(c, h.logger, "get_history", err)
		return
	}
	RespondWithPaginatedData(c, run, history, query.Page, query.PerPage, int(total))
}

// GetLedger returns the customer's matched ledger with redemption links
func (h *CustomerHandler) GetLedger(c *gin.Context) {
	customerID := c.Param("id")

	var query RunQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	run, ok := h.resolveRun(c, query.RunID)
	if !ok {
		return
	}

	txs, err := h.balanceService.GetLedger(c.Request.Context(), run.RunID, customerID)
	if err != nil {
		RespondServiceError(c, h.logger, "get_ledger", err)
		return
	}
	RespondWithRunData(c, run, txs)
}

func (h *CustomerHandler) resolveRun(c *gin.Context, rawRunID string) (*ledger.RunSummary, bool) {
	var runID *uuid.UUID
	if rawRunID != "" {
		id, err := uuid.Parse(rawRunID)
		if err != nil {
			RespondBadRequest(c, "Invalid run ID")
			return nil, false
		}
		runID = &id
	}

	run, err := h.balanceService.ResolveRun(c.Request.Context(), runID)
	if err != nil {
		RespondServiceError(c, h.logger, "resolve_run", err)
		return nil, false
	}
	return run, true
}

// parseAsOf accepts RFC3339 timestamps, or a date meaning the end of that UTC day
func parseAsOf(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if d, err := time.Parse(dateLayout, raw); err == nil {
		return d.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return time.Time{}, errInvalidAsOf
}
