package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/rewards-reconciler/internal/platform/persistence"
	"github.com/shopspring/decimal"
)

var matchedLedgerColumns = []string{
	"run_id", "seq", "customer_id", "transaction_id", "type", "amount", "created_at", "created_at_key", "redeem_id", "consumed_by", "audit_flags",
}

// MatchedLedgerRepository stores the annotated ledger produced by a run
type MatchedLedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewMatchedLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.MatchedLedgerRepository {
	return &MatchedLedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so the ledger and the outbox commit together
func (r *MatchedLedgerRepository) WithTx(tx pgx.Tx) ledger.MatchedLedgerRepository {
	return &MatchedLedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// SaveRun replaces every row of the run. Passing no transactions clears it.
func (r *MatchedLedgerRepository) SaveRun(ctx context.Context, runID uuid.UUID, txs []ledger.Transaction) error {
	if _, err := r.querier.Exec(ctx, `DELETE FROM matched_ledger WHERE run_id = $1`, runID); err != nil {
		r.logger.Error("Failed to clear matched ledger", "run_id", runID.String(), "error", err)
		return fmt.Errorf("failed to clear matched ledger: %w", err)
	}
	if len(txs) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(txs))
	for i, tx := range txs {
		flags := make([]string, len(tx.AuditFlags))
		for j, f := range tx.AuditFlags {
			flags[j] = string(f)
		}
		// COPY is binary only, so amounts go through pgtype.Numeric rather than text
		var amount pgtype.Numeric
		if err := amount.Scan(tx.Amount.String()); err != nil {
			return fmt.Errorf("failed to encode amount of %s: %w", tx.TransactionID, err)
		}
		rows[i] = matchedLedgerRow(runID, i, tx, amount, flags)
	}

	copied, err := r.querier.CopyFrom(ctx, pgx.Identifier{"matched_ledger"}, matchedLedgerColumns, pgx.CopyFromRows(rows))
	if err != nil {
		r.logger.Error("Failed to copy matched ledger", "run_id", runID.String(), "records", len(txs), "error", err)
		return fmt.Errorf("failed to insert matched ledger: %w", err)
	}
	if copied != int64(len(txs)) {
		return fmt.Errorf("failed to insert matched ledger: copied %d of %d records", copied, len(txs))
	}
	return nil
}

// matchedLedgerRow lays out one COPY row. TIMESTAMPTZ stops at microseconds, so the
// exact instant travels in created_at_key and is what reads come back from.
func matchedLedgerRow(runID uuid.UUID, seq int, tx ledger.Transaction, amount pgtype.Numeric, flags []string) []interface{} {
	return []interface{}{
		runID, seq, tx.CustomerID, tx.TransactionID, string(tx.Type), amount,
		tx.CreatedAt, ledger.InstantKey(tx.CreatedAt),
		tx.RedeemID, tx.ConsumedBy, flags,
	}
}

// ListByCustomer returns one customer's annotated ledger in chronological order
func (r *MatchedLedgerRepository) ListByCustomer(ctx context.Context, runID uuid.UUID, customerID string) ([]ledger.Transaction, error) {
	query := `
		SELECT customer_id, transaction_id, type, amount::text, created_at_key, redeem_id, consumed_by, audit_flags
		FROM matched_ledger
		WHERE run_id = $1 AND customer_id = $2
		ORDER BY seq ASC
	`

	rows, err := r.querier.Query(ctx, query, runID, customerID)
	if err != nil {
		r.logger.Error("Failed to query matched ledger", "run_id", runID.String(), "customer_id", customerID, "error", err)
		return nil, fmt.Errorf("failed to list matched ledger: %w", err)
	}
	defer rows.Close()

	txs := []ledger.Transaction{}
	for rows.Next() {
		var (
			tx        ledger.Transaction
			txType    string
			amount    string
			createdAt string
			flags     []string
		)
		if err := rows.Scan(
			&tx.CustomerID,
			&tx.TransactionID,
			&txType,
			&amount,
			&createdAt,
			&tx.RedeemID,
			&tx.ConsumedBy,
			&flags,
		); err != nil {
			return nil, fmt.Errorf("failed to scan matched ledger row: %w", err)
		}

		tx.Type = shared.TransactionType(txType)
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid amount %q for transaction %s: %w", amount, tx.TransactionID, err)
		}
		for _, f := range flags {
			tx.AuditFlags = append(tx.AuditFlags, shared.ReasonCode(f))
		}
		if tx.CreatedAt, err = ledger.ParseInstantKey(createdAt); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.TransactionID, err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over matched ledger: %w", err)
	}
	return txs, nil
}
