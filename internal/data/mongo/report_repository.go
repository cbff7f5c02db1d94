package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
)

const (
	RunReportsCollection       = "run_reports"
	QuarantineCollection       = "quarantine_records"
	ExceptionsCollection       = "customer_exceptions"
	SnapshotsCollection        = "balance_snapshots"
	CustomerBalancesCollection = "customer_balances"
)

// ReportIndexes lists the indexes the report collections are queried by
func ReportIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		RunReportsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "completed_at", Value: -1}}},
		},
		QuarantineCollection: {
			{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "seq", Value: 1}}},
		},
		ExceptionsCollection: {
			{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "customer_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		SnapshotsCollection: {
			{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "customer_id", Value: 1}, {Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "customer_id", Value: 1}, {Key: "created_at_key", Value: -1}, {Key: "seq", Value: -1}}},
		},
		CustomerBalancesCollection: {
			{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "customer_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
}

// ReportRepository implements the ledger.ReportRepository interface for MongoDB.
// Every Save call replaces what an earlier attempt of the same run stored.
type ReportRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewReportRepository creates a new MongoDB report repository
func NewReportRepository(logger *slog.Logger, db *mongo.Database) ledger.ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// SaveRunSummary upserts the run report keyed by run id
func (r *ReportRepository) SaveRunSummary(ctx context.Context, summary *ledger.RunSummary) error {
	doc := newRunSummaryDocument(summary)
	_, err := r.db.Collection(RunReportsCollection).ReplaceOne(ctx,
		bson.M{"_id": doc.RunID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to save run summary", "run_id", doc.RunID, "error", err)
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}

// GetRunSummary returns ErrRunNotFound if the run was never recorded
func (r *ReportRepository) GetRunSummary(ctx context.Context, runID uuid.UUID) (*ledger.RunSummary, error) {
	return r.findRun(ctx, bson.M{"_id": runID.String()}, runID.String())
}

// GetLatestPromotableRun returns the most recently completed run whose outputs may be trusted
func (r *ReportRepository) GetLatestPromotableRun(ctx context.Context) (*ledger.RunSummary, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "completed_at", Value: -1}})
	return r.findRun(ctx, bson.M{"status": string(shared.RunStatusCompleted)}, "", opts)
}

func (r *ReportRepository) findRun(ctx context.Context, filter bson.M, runID string, opts ...*options.FindOneOptions) (*ledger.RunSummary, error) {
	var doc runSummaryDocument
	if err := r.db.Collection(RunReportsCollection).FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrRunNotFound{RunID: runID}
		}
		r.logger.Error("Failed to get run summary", "run_id", runID, "error", err)
		return nil, fmt.Errorf("failed to get run summary: %w", err)
	}
	return doc.toDomain()
}

// SaveQuarantine replaces the quarantine report of a run
func (r *ReportRepository) SaveQuarantine(ctx context.Context, runID uuid.UUID, records []ledger.QuarantinedRecord) error {
	docs := make([]interface{}, len(records))
	for i, rec := range records {
		docs[i] = quarantineDocument{RunID: runID.String(), Seq: i, Record: rec.Record, Reasons: rec.Reasons}
	}
	return r.replaceRunDocuments(ctx, QuarantineCollection, runID, docs)
}

// GetQuarantine returns the quarantined records in input order
func (r *ReportRepository) GetQuarantine(ctx context.Context, runID uuid.UUID) ([]ledger.QuarantinedRecord, error) {
	var docs []quarantineDocument
	if err := r.findAll(ctx, QuarantineCollection, bson.M{"run_id": runID.String()}, bson.D{{Key: "seq", Value: 1}}, &docs); err != nil {
		return nil, err
	}
	records := make([]ledger.QuarantinedRecord, len(docs))
	for i, doc := range docs {
		records[i] = ledger.QuarantinedRecord{Record: doc.Record, Reasons: doc.Reasons}
	}
	return records, nil
}

// SaveExceptions replaces the exception report of a run
func (r *ReportRepository) SaveExceptions(ctx context.Context, runID uuid.UUID, exceptions []ledger.CustomerException) error {
	docs := make([]interface{}, len(exceptions))
	for i, e := range exceptions {
		doc, err := newExceptionDocument(runID.String(), e)
		if err != nil {
			return fmt.Errorf("failed to encode exception for customer %s: %w", e.CustomerID, err)
		}
		docs[i] = doc
	}
	return r.replaceRunDocuments(ctx, ExceptionsCollection, runID, docs)
}

// GetExceptions returns the exception report ordered by customer
func (r *ReportRepository) GetExceptions(ctx context.Context, runID uuid.UUID) ([]ledger.CustomerException, error) {
	var docs []exceptionDocument
	if err := r.findAll(ctx, ExceptionsCollection, bson.M{"run_id": runID.String()}, bson.D{{Key: "customer_id", Value: 1}}, &docs); err != nil {
		return nil, err
	}
	exceptions := make([]ledger.CustomerException, len(docs))
	for i, doc := range docs {
		e, err := doc.toDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to decode exception for customer %s: %w", doc.CustomerID, err)
		}
		exceptions[i] = e
	}
	return exceptions, nil
}

// SaveSnapshots replaces the balance time series of a run. seq preserves the
// per-customer chronological order so ties on created_at stay deterministic.
func (r *ReportRepository) SaveSnapshots(ctx context.Context, runID uuid.UUID, snapshots []ledger.BalanceSnapshot) error {
	docs := make([]interface{}, len(snapshots))
	for i, s := range snapshots {
		doc, err := newSnapshotDocument(runID.String(), i, s)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot %s: %w", s.TransactionID, err)
		}
		docs[i] = doc
	}
	return r.replaceRunDocuments(ctx, SnapshotsCollection, runID, docs)
}

// GetHistory pages through one customer's balance time series in chronological order
func (r *ReportRepository) GetHistory(ctx context.Context, runID uuid.UUID, customerID string, limit, offset int) ([]ledger.BalanceSnapshot, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.db.Collection(SnapshotsCollection).Find(ctx, bson.M{"run_id": runID.String(), "customer_id": customerID}, opts)
	if err != nil {
		r.logger.Error("Failed to query balance history", "run_id", runID.String(), "customer_id", customerID, "error", err)
		return nil, fmt.Errorf("failed to query balance history: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []snapshotDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode balance history: %w", err)
	}
	history := make([]ledger.BalanceSnapshot, len(docs))
	for i, doc := range docs {
		if history[i], err = doc.toDomain(); err != nil {
			return nil, err
		}
	}
	return history, nil
}

// CountHistory counts the snapshots of one customer
func (r *ReportRepository) CountHistory(ctx context.Context, runID uuid.UUID, customerID string) (int64, error) {
	count, err := r.db.Collection(SnapshotsCollection).CountDocuments(ctx, bson.M{"run_id": runID.String(), "customer_id": customerID})
	if err != nil {
		r.logger.Error("Failed to count balance history", "run_id", runID.String(), "customer_id", customerID, "error", err)
		return 0, fmt.Errorf("failed to count balance history: %w", err)
	}
	return count, nil
}

// BalanceAsOf returns the last snapshot with created_at <= asOf. It never interpolates:
// a time before the first transaction yields ErrSnapshotNotFound.
// The comparison runs on the nanosecond key since BSON dates stop at milliseconds.
func (r *ReportRepository) BalanceAsOf(ctx context.Context, runID uuid.UUID, customerID string, asOf time.Time) (*ledger.BalanceSnapshot, error) {
	filter := bson.M{
		"run_id":      runID.String(),
		"customer_id": customerID,
		"created_at_key": bson.M{"$lte": ledger.InstantKey(asOf)},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at_key", Value: -1}, {Key: "seq", Value: -1}})

	var doc snapshotDocument
	err := r.db.Collection(SnapshotsCollection).FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrSnapshotNotFound{CustomerID: customerID}
		}
		r.logger.Error("Failed to query balance as of", "run_id", runID.String(), "customer_id", customerID, "as_of", asOf, "error", err)
		return nil, fmt.Errorf("failed to query balance as of %s: %w", asOf.Format(time.RFC3339), err)
	}
	snapshot, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// SaveBalances replaces the materialized current balances of a run
func (r *ReportRepository) SaveBalances(ctx context.Context, runID uuid.UUID, balances []ledger.CustomerBalance) error {
	docs := make([]interface{}, len(balances))
	for i, b := range balances {
		doc, err := newBalanceDocument(runID.String(), b)
		if err != nil {
			return fmt.Errorf("failed to encode balance of %s: %w", b.CustomerID, err)
		}
		docs[i] = doc
	}
	return r.replaceRunDocuments(ctx, CustomerBalancesCollection, runID, docs)
}

// GetBalance returns ErrSnapshotNotFound for a customer absent from the run
func (r *ReportRepository) GetBalance(ctx context.Context, runID uuid.UUID, customerID string) (*ledger.CustomerBalance, error) {
	var doc balanceDocument
	err := r.db.Collection(CustomerBalancesCollection).FindOne(ctx, bson.M{"run_id": runID.String(), "customer_id": customerID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrSnapshotNotFound{CustomerID: customerID}
		}
		r.logger.Error("Failed to get customer balance", "run_id", runID.String(), "customer_id", customerID, "error", err)
		return nil, fmt.Errorf("failed to get customer balance: %w", err)
	}
	balance, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// replaceRunDocuments deletes what a previous attempt stored for the run and inserts docs
func (r *ReportRepository) replaceRunDocuments(ctx context.Context, collection string, runID uuid.UUID, docs []interface{}) error {
	coll := r.db.Collection(collection)
	if _, err := coll.DeleteMany(ctx, bson.M{"run_id": runID.String()}); err != nil {
		r.logger.Error("Failed to clear run documents", "collection", collection, "run_id", runID.String(), "error", err)
		return fmt.Errorf("failed to clear %s for run %s: %w", collection, runID.String(), err)
	}
	if len(docs) == 0 {
		return nil
	}
	if _, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		r.logger.Error("Failed to insert run documents", "collection", collection, "run_id", runID.String(), "count", len(docs), "error", err)
		return fmt.Errorf("failed to insert %s for run %s: %w", collection, runID.String(), err)
	}
	return nil
}

func (r *ReportRepository) findAll(ctx context.Context, collection string, filter bson.M, sort bson.D, out interface{}) error {
	cursor, err := r.db.Collection(collection).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		r.logger.Error("Failed to query run documents", "collection", collection, "error", err)
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}
