package mongo

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// decimalCodec converts amounts to Decimal128 and back, keeping the first failure.
// Amounts are stored as Decimal128 so that reports stay exact and remain queryable by value.
type decimalCodec struct {
	err error
}

func (c *decimalCodec) encode(d decimal.Decimal) primitive.Decimal128 {
	if c.err != nil {
		return primitive.Decimal128{}
	}
	dec, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		c.err = fmt.Errorf("amount %s does not fit Decimal128: %w", d.String(), err)
	}
	return dec
}

func (c *decimalCodec) decode(d primitive.Decimal128) decimal.Decimal {
	if c.err != nil {
		return decimal.Zero
	}
	out, err := decimal.NewFromString(d.String())
	if err != nil {
		c.err = fmt.Errorf("stored amount %s is not a decimal: %w", d.String(), err)
	}
	return out
}

type runSummaryDocument struct {
	RunID              string     `bson:"_id"`
	BatchID            string     `bson:"batch_id"`
	CorrelationID      string     `bson:"correlation_id,omitempty"`
	Status             string     `bson:"status"`
	InputRecords       int        `bson:"input_records"`
	ValidRecords       int        `bson:"valid_records"`
	QuarantinedRecords int        `bson:"quarantined_records"`
	Customers          int        `bson:"customers"`
	Matches            int        `bson:"matches"`
	Orphans            int        `bson:"orphans"`
	Unconsumed         int        `bson:"unconsumed"`
	BalanceMismatches  int        `bson:"balance_mismatches"`
	FaultCode          string     `bson:"fault_code,omitempty"`
	FaultDetail        string     `bson:"fault_detail,omitempty"`
	StartedAt          time.Time  `bson:"started_at"`
	CompletedAt        *time.Time `bson:"completed_at,omitempty"`
}

func newRunSummaryDocument(s *ledger.RunSummary) runSummaryDocument {
	return runSummaryDocument{
		RunID:              s.RunID.String(),
		BatchID:            s.BatchID,
		CorrelationID:      s.CorrelationID,
		Status:             string(s.Status),
		InputRecords:       s.InputRecords,
		ValidRecords:       s.ValidRecords,
		QuarantinedRecords: s.QuarantinedRecords,
		Customers:          s.Customers,
		Matches:            s.Matches,
		Orphans:            s.Orphans,
		Unconsumed:         s.Unconsumed,
		BalanceMismatches:  s.BalanceMismatches,
		FaultCode:          string(s.FaultCode),
		FaultDetail:        s.FaultDetail,
		StartedAt:          s.StartedAt,
		CompletedAt:        s.CompletedAt,
	}
}

func (d runSummaryDocument) toDomain() (*ledger.RunSummary, error) {
	runID, err := uuid.Parse(d.RunID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", d.RunID, err)
	}
	s := &ledger.RunSummary{
		RunID:              runID,
		BatchID:            d.BatchID,
		CorrelationID:      d.CorrelationID,
		Status:             shared.RunStatus(d.Status),
		InputRecords:       d.InputRecords,
		ValidRecords:       d.ValidRecords,
		QuarantinedRecords: d.QuarantinedRecords,
		Customers:          d.Customers,
		Matches:            d.Matches,
		Orphans:            d.Orphans,
		Unconsumed:         d.Unconsumed,
		BalanceMismatches:  d.BalanceMismatches,
		FaultCode:          shared.FaultCode(d.FaultCode),
		FaultDetail:        d.FaultDetail,
		StartedAt:          d.StartedAt.UTC(),
	}
	if d.CompletedAt != nil {
		completed := d.CompletedAt.UTC()
		s.CompletedAt = &completed
	}
	return s, nil
}

type quarantineDocument struct {
	RunID   string              `bson:"run_id"`
	Seq     int                 `bson:"seq"`
	Record  ledger.RawRecord    `bson:"record"`
	Reasons []shared.ReasonCode `bson:"reasons"`
}

type balanceMismatchDocument struct {
	Reason          string               `bson:"reason"`
	ExpectedBalance primitive.Decimal128 `bson:"expected_balance"`
	ComputedBalance primitive.Decimal128 `bson:"computed_balance"`
	Difference      primitive.Decimal128 `bson:"difference"`
	Tolerance       primitive.Decimal128 `bson:"tolerance"`
}

type exceptionDocument struct {
	RunID            string                   `bson:"run_id"`
	CustomerID       string                   `bson:"customer_id"`
	OrphanCount      int                      `bson:"orphan_count"`
	OrphanAmount     primitive.Decimal128     `bson:"orphan_amount"`
	OrphanIDs        []string                 `bson:"orphan_ids,omitempty"`
	UnconsumedCount  int                      `bson:"unconsumed_count"`
	UnconsumedAmount primitive.Decimal128     `bson:"unconsumed_amount"`
	UnconsumedIDs    []string                 `bson:"unconsumed_ids,omitempty"`
	BalanceMismatch  *balanceMismatchDocument `bson:"balance_mismatch,omitempty"`
}

func newExceptionDocument(runID string, e ledger.CustomerException) (exceptionDocument, error) {
	var codec decimalCodec
	doc := exceptionDocument{
		RunID:            runID,
		CustomerID:       e.CustomerID,
		OrphanCount:      e.OrphanCount,
		OrphanAmount:     codec.encode(e.OrphanAmount),
		OrphanIDs:        e.OrphanIDs,
		UnconsumedCount:  e.UnconsumedCount,
		UnconsumedAmount: codec.encode(e.UnconsumedAmount),
		UnconsumedIDs:    e.UnconsumedIDs,
	}
	if m := e.BalanceMismatch; m != nil {
		doc.BalanceMismatch = &balanceMismatchDocument{
			Reason:          string(m.Reason),
			ExpectedBalance: codec.encode(m.ExpectedBalance),
			ComputedBalance: codec.encode(m.ComputedBalance),
			Difference:      codec.encode(m.Difference),
			Tolerance:       codec.encode(m.Tolerance),
		}
	}
	return doc, codec.err
}

func (d exceptionDocument) toDomain() (ledger.CustomerException, error) {
	var codec decimalCodec
	e := ledger.CustomerException{
		CustomerID:       d.CustomerID,
		OrphanCount:      d.OrphanCount,
		OrphanAmount:     codec.decode(d.OrphanAmount),
		OrphanIDs:        d.OrphanIDs,
		UnconsumedCount:  d.UnconsumedCount,
		UnconsumedAmount: codec.decode(d.UnconsumedAmount),
		UnconsumedIDs:    d.UnconsumedIDs,
	}
	if m := d.BalanceMismatch; m != nil {
		e.BalanceMismatch = &ledger.BalanceException{
			CustomerID:      d.CustomerID,
			Reason:          shared.ReasonCode(m.Reason),
			ExpectedBalance: codec.decode(m.ExpectedBalance),
			ComputedBalance: codec.decode(m.ComputedBalance),
			Difference:      codec.decode(m.Difference),
			Tolerance:       codec.decode(m.Tolerance),
		}
	}
	return e, codec.err
}

type snapshotDocument struct {
	RunID             string               `bson:"run_id"`
	CustomerID        string               `bson:"customer_id"`
	Seq               int                  `bson:"seq"`
	TransactionID     string               `bson:"transaction_id"`
	Type              string               `bson:"type"`
	Amount            primitive.Decimal128 `bson:"amount"`
	CreatedAt         time.Time            `bson:"created_at"`     // millisecond BSON date, for ad hoc queries
	CreatedAtKey      string               `bson:"created_at_key"` // exact instant, see ledger.InstantKey
	CumulativeEarned  primitive.Decimal128 `bson:"cumulative_earned"`
	CumulativeSpent   primitive.Decimal128 `bson:"cumulative_spent"`
	CumulativeExpired primitive.Decimal128 `bson:"cumulative_expired"`
	Balance           primitive.Decimal128 `bson:"balance"`
}

func newSnapshotDocument(runID string, seq int, s ledger.BalanceSnapshot) (snapshotDocument, error) {
	var codec decimalCodec
	doc := snapshotDocument{
		RunID:             runID,
		CustomerID:        s.CustomerID,
		Seq:               seq,
		TransactionID:     s.TransactionID,
		Type:              string(s.Type),
		Amount:            codec.encode(s.Amount),
		CreatedAt:         s.CreatedAt,
		CreatedAtKey:      ledger.InstantKey(s.CreatedAt),
		CumulativeEarned:  codec.encode(s.CumulativeEarned),
		CumulativeSpent:   codec.encode(s.CumulativeSpent),
		CumulativeExpired: codec.encode(s.CumulativeExpired),
		Balance:           codec.encode(s.Balance),
	}
	return doc, codec.err
}

func (d snapshotDocument) toDomain() (ledger.BalanceSnapshot, error) {
	createdAt, err := ledger.ParseInstantKey(d.CreatedAtKey)
	if err != nil {
		return ledger.BalanceSnapshot{}, fmt.Errorf("snapshot %s: %w", d.TransactionID, err)
	}
	var codec decimalCodec
	s := ledger.BalanceSnapshot{
		CustomerID:        d.CustomerID,
		TransactionID:     d.TransactionID,
		Type:              shared.TransactionType(d.Type),
		Amount:            codec.decode(d.Amount),
		CreatedAt:         createdAt,
		CumulativeEarned:  codec.decode(d.CumulativeEarned),
		CumulativeSpent:   codec.decode(d.CumulativeSpent),
		CumulativeExpired: codec.decode(d.CumulativeExpired),
		Balance:           codec.decode(d.Balance),
	}
	return s, codec.err
}

type balanceDocument struct {
	RunID             string               `bson:"run_id"`
	CustomerID        string               `bson:"customer_id"`
	Balance           primitive.Decimal128 `bson:"balance"`
	CumulativeEarned  primitive.Decimal128 `bson:"cumulative_earned"`
	CumulativeSpent   primitive.Decimal128 `bson:"cumulative_spent"`
	CumulativeExpired primitive.Decimal128 `bson:"cumulative_expired"`
	AsOf              time.Time            `bson:"as_of"`
	AsOfKey           string               `bson:"as_of_key"`
	TransactionCount  int                  `bson:"transaction_count"`
}

func newBalanceDocument(runID string, b ledger.CustomerBalance) (balanceDocument, error) {
	var codec decimalCodec
	doc := balanceDocument{
		RunID:             runID,
		CustomerID:        b.CustomerID,
		Balance:           codec.encode(b.Balance),
		CumulativeEarned:  codec.encode(b.CumulativeEarned),
		CumulativeSpent:   codec.encode(b.CumulativeSpent),
		CumulativeExpired: codec.encode(b.CumulativeExpired),
		AsOf:              b.AsOf,
		AsOfKey:           ledger.InstantKey(b.AsOf),
		TransactionCount:  b.TransactionCount,
	}
	return doc, codec.err
}

func (d balanceDocument) toDomain() (ledger.CustomerBalance, error) {
	asOf, err := ledger.ParseInstantKey(d.AsOfKey)
	if err != nil {
		return ledger.CustomerBalance{}, fmt.Errorf("balance of %s: %w", d.CustomerID, err)
	}
	var codec decimalCodec
	b := ledger.CustomerBalance{
		CustomerID:        d.CustomerID,
		Balance:           codec.decode(d.Balance),
		CumulativeEarned:  codec.decode(d.CumulativeEarned),
		CumulativeSpent:   codec.decode(d.CumulativeSpent),
		CumulativeExpired: codec.decode(d.CumulativeExpired),
		AsOf:              asOf,
		TransactionCount:  d.TransactionCount,
	}
	return b, codec.err
}
