package ledger

import (
	"sort"
	"time"

	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// RawRecord is a ledger row exactly as the ingestion step delivered it
type RawRecord struct {
	RowNumber     int    `json:"row_number" bson:"row_number"`
	Source        string `json:"source,omitempty" bson:"source,omitempty"` // earned, spent or expired sheet
	CustomerID    string `json:"customer_id" bson:"customer_id"`
	TransactionID string `json:"transaction_id" bson:"transaction_id"`
	Type          string `json:"type" bson:"type"`
	Amount        string `json:"amount" bson:"amount"`
	CreatedAt     string `json:"created_at" bson:"created_at"`
}

// Transaction is a validated rewards ledger event.
// Every field except RedeemID and ConsumedBy is an immutable fact.
type Transaction struct {
	TransactionID string                 `json:"transaction_id"`
	CustomerID    string                 `json:"customer_id"`
	Type          shared.TransactionType `json:"type"`
	Amount        decimal.Decimal        `json:"amount"`
	CreatedAt     time.Time              `json:"created_at"`
	RedeemID      *string                `json:"redeem_id"`             // Earned id consumed by a Spent/Expired record
	ConsumedBy    *string                `json:"consumed_by,omitempty"` // Spent/Expired id that consumed an Earned record
	AuditFlags    []shared.ReasonCode    `json:"audit_flags,omitempty"`
}

// Precedes orders transactions by (created_at, transaction_id)
func (t Transaction) Precedes(other Transaction) bool {
	if !t.CreatedAt.Equal(other.CreatedAt) {
		return t.CreatedAt.Before(other.CreatedAt)
	}
	return t.TransactionID < other.TransactionID
}

// SortChronologically sorts in place by (created_at, transaction_id)
func SortChronologically(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Precedes(txs[j])
	})
}

// SortByCustomer sorts in place by (customer_id, created_at, transaction_id)
func SortByCustomer(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].CustomerID != txs[j].CustomerID {
			return txs[i].CustomerID < txs[j].CustomerID
		}
		return txs[i].Precedes(txs[j])
	})
}

// QuarantinedRecord is a raw record rejected before matching
type QuarantinedRecord struct {
	Record  RawRecord           `json:"record" bson:"record"`
	Reasons []shared.ReasonCode `json:"reasons" bson:"reasons"`
}

// HasReason reports whether the record was rejected for the given code
func (q QuarantinedRecord) HasReason(code shared.ReasonCode) bool {
	for _, r := range q.Reasons {
		if r == code {
			return true
		}
	}
	return false
}

// ValidationResult partitions a batch into usable and quarantined records
type ValidationResult struct {
	Valid       []Transaction
	Quarantined []QuarantinedRecord
}

// Total is the number of input records the partition accounts for
func (r *ValidationResult) Total() int {
	return len(r.Valid) + len(r.Quarantined)
}

// PartitionByCustomer groups transactions by customer id. Customer ids are
// returned sorted so that callers iterate deterministically.
func PartitionByCustomer(txs []Transaction) ([]string, map[string][]Transaction) {
	partitions := make(map[string][]Transaction)
	for _, tx := range txs {
		partitions[tx.CustomerID] = append(partitions[tx.CustomerID], tx)
	}

	customerIDs := make([]string, 0, len(partitions))
	for id := range partitions {
		customerIDs = append(customerIDs, id)
	}
	sort.Strings(customerIDs)

	return customerIDs, partitions
}

// SignedTotal is the algebraic sum of all amounts
func SignedTotal(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}
