package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/platform/persistence"
)

const uniqueViolation = "23505"

var rawRecordColumns = []string{"batch_id", "row_number", "source", "customer_id", "transaction_id", "type", "amount", "created_at"}

// RawRecordRepository stores ingested batches exactly as delivered.
// Every field is kept as text so that validation sees the original values.
type RawRecordRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewRawRecordRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.SourceRepository {
	return &RawRecordRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// InsertBatch copies all records of a new batch. A batch id can only be ingested once.
func (r *RawRecordRepository) InsertBatch(ctx context.Context, batchID string, records []ledger.RawRecord) error {
	if len(records) == 0 {
		return ledger.ErrEmptyBatch
	}

	var exists bool
	err := r.querier.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM raw_transactions WHERE batch_id = $1)`, batchID).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check batch existence", "batch_id", batchID, "error", err)
		return fmt.Errorf("failed to check batch %s: %w", batchID, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ledger.ErrBatchExists, batchID)
	}

	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		rowNumber := rec.RowNumber
		if rowNumber == 0 {
			rowNumber = i + 1
		}
		rows[i] = []interface{}{batchID, rowNumber, rec.Source, rec.CustomerID, rec.TransactionID, rec.Type, rec.Amount, rec.CreatedAt}
	}

	copied, err := r.querier.CopyFrom(ctx, pgx.Identifier{"raw_transactions"}, rawRecordColumns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ledger.ErrBatchExists, batchID)
		}
		r.logger.Error("Failed to copy raw records", "batch_id", batchID, "records", len(records), "error", err)
		return fmt.Errorf("failed to insert batch %s: %w", batchID, err)
	}
	if copied != int64(len(records)) {
		return fmt.Errorf("failed to insert batch %s: copied %d of %d records", batchID, copied, len(records))
	}

	r.logger.Info("Batch ingested", "batch_id", batchID, "records", copied)
	return nil
}

// ListByBatch returns the batch in ingestion order
func (r *RawRecordRepository) ListByBatch(ctx context.Context, batchID string) ([]ledger.RawRecord, error) {
	query := `
		SELECT row_number, source, customer_id, transaction_id, type, amount, created_at
		FROM raw_transactions
		WHERE batch_id = $1
		ORDER BY row_number ASC
	`

	rows, err := r.querier.Query(ctx, query, batchID)
	if err != nil {
		r.logger.Error("Failed to query raw records", "batch_id", batchID, "error", err)
		return nil, fmt.Errorf("failed to list batch %s: %w", batchID, err)
	}
	defer rows.Close()

	var records []ledger.RawRecord
	for rows.Next() {
		var rec ledger.RawRecord
		if err := rows.Scan(
			&rec.RowNumber,
			&rec.Source,
			&rec.CustomerID,
			&rec.TransactionID,
			&rec.Type,
			&rec.Amount,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan raw record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over raw records: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ledger.ErrBatchNotFound, batchID)
	}
	return records, nil
}
