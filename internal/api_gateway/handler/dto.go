package handler

import (
	"time"

	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// RawRecordRequest is one ledger row as delivered by the upstream extract.
// Fields stay strings so that malformed values reach the quarantine report.
type RawRecordRequest struct {
	Source        string `json:"source"`
	CustomerID    string `json:"customer_id"`
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	CreatedAt     string `json:"created_at"`
}

// IngestBatchRequest represents a request to store a raw batch
type IngestBatchRequest struct {
	BatchID string             `json:"batch_id" binding:"omitempty,max=128"`
	Records []RawRecordRequest `json:"records" binding:"required,min=1"`
}

// IngestBatchResponse represents a stored batch in API responses
type IngestBatchResponse struct {
	BatchID string `json:"batch_id"`
	Records int    `json:"records"`
}

// TriggerRunRequest represents a request to reconcile an ingested batch
type TriggerRunRequest struct {
	BatchID string `json:"batch_id" binding:"required,max=128"`
}

// TriggerRunResponse represents an accepted run in API responses
type TriggerRunResponse struct {
	RunID         string `json:"run_id"`
	BatchID       string `json:"batch_id"`
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
}

// BalanceQuery represents the query parameters of the balance endpoint
type BalanceQuery struct {
	RunID string `form:"run_id" binding:"omitempty,uuid"`
	AsOf  string `form:"as_of"`
}

// RunQuery selects the run a customer read is served from
type RunQuery struct {
	RunID string `form:"run_id" binding:"omitempty,uuid"`
}

// HistoryQuery represents the query parameters of the balance history endpoint.
// A zero PerPage falls back to the configured page size.
type HistoryQuery struct {
	RunID   string `form:"run_id" binding:"omitempty,uuid"`
	Page    int    `form:"page,default=1" binding:"min=1,max=100000"`
	PerPage int    `form:"per_page" binding:"min=0,max=500"`
}

// BalanceResponse represents a customer balance in API responses
type BalanceResponse struct {
	CustomerID        string          `json:"customer_id"`
	Balance           decimal.Decimal `json:"balance"`
	CumulativeEarned  decimal.Decimal `json:"cumulative_earned"`
	CumulativeSpent   decimal.Decimal `json:"cumulative_spent"`
	CumulativeExpired decimal.Decimal `json:"cumulative_expired"`
	AsOf              string          `json:"as_of"`
	TransactionID     string          `json:"transaction_id,omitempty"` // last transaction included, as-of queries only
	TransactionCount  int             `json:"transaction_count,omitempty"`
}

func toRawRecords(reqs []RawRecordRequest) []ledger.RawRecord {
	records := make([]ledger.RawRecord, len(reqs))
	for i, r := range reqs {
		records[i] = ledger.RawRecord{
			Source:        r.Source,
			CustomerID:    r.CustomerID,
			TransactionID: r.TransactionID,
			Type:          r.Type,
			Amount:        r.Amount,
			CreatedAt:     r.CreatedAt,
		}
	}
	return records
}

func mapBalanceToResponse(b *ledger.CustomerBalance) BalanceResponse {
	return BalanceResponse{
		CustomerID:        b.CustomerID,
		Balance:           b.Balance,
		CumulativeEarned:  b.CumulativeEarned,
		CumulativeSpent:   b.CumulativeSpent,
		CumulativeExpired: b.CumulativeExpired,
		AsOf:              b.AsOf.Format(time.RFC3339Nano),
		TransactionCount:  b.TransactionCount,
	}
}

func mapSnapshotToResponse(s *ledger.BalanceSnapshot) BalanceResponse {
	return BalanceResponse{
		CustomerID:        s.CustomerID,
		Balance:           s.Balance,
		CumulativeEarned:  s.CumulativeEarned,
		CumulativeSpent:   s.CumulativeSpent,
		CumulativeExpired: s.CumulativeExpired,
		AsOf:              s.CreatedAt.Format(time.RFC3339Nano),
		TransactionID:     s.TransactionID,
	}
}
