package mongo

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newTestRepo(mt *mtest.T) *ReportRepository {
	return &ReportRepository{
		db:     mt.DB,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func ns(mt *mtest.T, collection string) string {
	return mt.DB.Name() + "." + collection
}

func toBSON(t *testing.T, v interface{}) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var (
	day1 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
)

func TestReportRepository_RunSummary(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	runID := uuid.New()
	completed := day2
	summary := &ledger.RunSummary{
		RunID:        runID,
		BatchID:      "batch-1",
		Status:       shared.RunStatusCompleted,
		InputRecords: 4,
		ValidRecords: 4,
		Customers:    1,
		Matches:      1,
		StartedAt:    day1,
		CompletedAt:  &completed,
	}

	mt.Run("save upserts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		require.NoError(t, newTestRepo(mt).SaveRunSummary(context.Background(), summary))
	})

	mt.Run("save failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad"}))
		err := newTestRepo(mt).SaveRunSummary(context.Background(), summary)
		assert.ErrorContains(t, err, "failed to save run summary")
	})

	mt.Run("get round trips", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, RunReportsCollection), mtest.FirstBatch,
			toBSON(t, newRunSummaryDocument(summary))))

		got, err := newTestRepo(mt).GetRunSummary(context.Background(), runID)
		require.NoError(t, err)
		assert.Equal(t, summary, got)
	})

	mt.Run("get missing run", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, RunReportsCollection), mtest.FirstBatch))

		got, err := newTestRepo(mt).GetRunSummary(context.Background(), runID)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ledger.ErrRunNotFound{RunID: runID.String()})
	})

	mt.Run("latest promotable missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, RunReportsCollection), mtest.FirstBatch))

		_, err := newTestRepo(mt).GetLatestPromotableRun(context.Background())
		assert.ErrorIs(t, err, ledger.ErrRunNotFound{})
	})
}

func TestReportRepository_Quarantine(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	runID := uuid.New()
	records := []ledger.QuarantinedRecord{
		{Record: ledger.RawRecord{RowNumber: 3, CustomerID: "C1", TransactionID: "X1", Type: "bonus", Amount: "5"}, Reasons: []shared.ReasonCode{shared.ReasonBadType, shared.ReasonMissingField}},
	}

	mt.Run("save replaces", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)
		require.NoError(t, newTestRepo(mt).SaveQuarantine(context.Background(), runID, records))
	})

	mt.Run("save empty only clears", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		require.NoError(t, newTestRepo(mt).SaveQuarantine(context.Background(), runID, nil))
	})

	mt.Run("insert failure", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}),
		)
		err := newTestRepo(mt).SaveQuarantine(context.Background(), runID, records)
		assert.ErrorContains(t, err, "failed to insert quarantine_records")
	})

	mt.Run("get in input order", func(mt *mtest.T) {
		doc := quarantineDocument{RunID: runID.String(), Seq: 0, Record: records[0].Record, Reasons: records[0].Reasons}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, QuarantineCollection), mtest.FirstBatch, toBSON(t, doc)))

		got, err := newTestRepo(mt).GetQuarantine(context.Background(), runID)
		require.NoError(t, err)
		assert.Equal(t, records, got)
	})
}

func TestReportRepository_Exceptions(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	runID := uuid.New()
	exception := ledger.CustomerException{
		CustomerID:       "C1",
		OrphanCount:      1,
		OrphanAmount:     dec("-10.5"),
		OrphanIDs:        []string{"S9"},
		UnconsumedCount:  0,
		UnconsumedAmount: decimal.Zero,
		BalanceMismatch: &ledger.BalanceException{
			CustomerID:      "C1",
			Reason:          shared.ReasonBalanceEquationMismatch,
			ExpectedBalance: dec("89.5"),
			ComputedBalance: dec("90"),
			Difference:      dec("0.5"),
			Tolerance:       dec("0.01"),
		},
	}

	mt.Run("save", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		require.NoError(t, newTestRepo(mt).SaveExceptions(context.Background(), runID, []ledger.CustomerException{exception}))
	})

	mt.Run("get keeps exact amounts", func(mt *mtest.T) {
		doc, err := newExceptionDocument(runID.String(), exception)
		require.NoError(t, err)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, ExceptionsCollection), mtest.FirstBatch, toBSON(t, doc)))

		got, err := newTestRepo(mt).GetExceptions(context.Background(), runID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].OrphanAmount.Equal(dec("-10.5")))
		require.NotNil(t, got[0].BalanceMismatch)
		assert.True(t, got[0].BalanceMismatch.Difference.Equal(dec("0.5")))
		assert.Equal(t, shared.ReasonBalanceEquationMismatch, got[0].BalanceMismatch.Reason)
		assert.Equal(t, []string{"S9"}, got[0].OrphanIDs)
	})
}

func TestReportRepository_Snapshots(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	runID := uuid.New()
	history := []ledger.BalanceSnapshot{
		{CustomerID: "C1", TransactionID: "E1", Type: shared.TransactionTypeEarned, Amount: dec("100"), CreatedAt: day1,
			CumulativeEarned: dec("100"), CumulativeSpent: decimal.Zero, CumulativeExpired: decimal.Zero, Balance: dec("100")},
		{CustomerID: "C1", TransactionID: "S1", Type: shared.TransactionTypeSpent, Amount: dec("-40.25"), CreatedAt: day2,
			CumulativeEarned: dec("100"), CumulativeSpent: dec("-40.25"), CumulativeExpired: decimal.Zero, Balance: dec("59.75")},
	}
	docs := func(t *testing.T) []bson.D {
		out := make([]bson.D, len(history))
		for i, s := range history {
			doc, err := newSnapshotDocument(runID.String(), i, s)
			require.NoError(t, err)
			out[i] = toBSON(t, doc)
		}
		return out
	}

	mt.Run("save", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}))
		require.NoError(t, newTestRepo(mt).SaveSnapshots(context.Background(), runID, history))
	})

	mt.Run("clear failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Name: "Unauthorized", Message: "not authorized"}))
		err := newTestRepo(mt).SaveSnapshots(context.Background(), runID, history)
		assert.ErrorContains(t, err, "failed to clear balance_snapshots")
	})

	mt.Run("history page", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, SnapshotsCollection), mtest.FirstBatch, docs(t)...))

		got, err := newTestRepo(mt).GetHistory(context.Background(), runID, "C1", 50, 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for i := range history {
			assert.Equal(t, history[i].TransactionID, got[i].TransactionID)
			assert.True(t, history[i].Balance.Equal(got[i].Balance))
			assert.True(t, history[i].CumulativeSpent.Equal(got[i].CumulativeSpent))
			assert.Equal(t, history[i].CreatedAt, got[i].CreatedAt)
		}
	})

	mt.Run("count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, SnapshotsCollection), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(2)}}))

		count, err := newTestRepo(mt).CountHistory(context.Background(), runID, "C1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	mt.Run("as of returns latest at or before", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, SnapshotsCollection), mtest.FirstBatch, docs(t)[0]))

		got, err := newTestRepo(mt).BalanceAsOf(context.Background(), runID, "C1", day1.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "E1", got.TransactionID)
		assert.True(t, got.Balance.Equal(dec("100")))
	})

	mt.Run("as of keeps nanoseconds", func(mt *mtest.T) {
		at := day1.Add(700 * time.Nanosecond)
		doc, err := newSnapshotDocument(runID.String(), 0, ledger.BalanceSnapshot{
			CustomerID: "C1", TransactionID: "E9", Type: shared.TransactionTypeEarned,
			Amount: dec("5"), CreatedAt: at, CumulativeEarned: dec("5"), Balance: dec("5"),
		})
		require.NoError(t, err)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, SnapshotsCollection), mtest.FirstBatch, toBSON(t, doc)))

		got, err := newTestRepo(mt).BalanceAsOf(context.Background(), runID, "C1", at)
		require.NoError(t, err)
		assert.True(t, got.CreatedAt.Equal(at))
	})

	mt.Run("as of before first transaction", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, SnapshotsCollection), mtest.FirstBatch))

		got, err := newTestRepo(mt).BalanceAsOf(context.Background(), runID, "C1", day1.Add(-time.Hour))
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ledger.ErrSnapshotNotFound{CustomerID: "C1"})
	})
}

func TestReportRepository_Balances(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	runID := uuid.New()
	balance := ledger.CustomerBalance{
		CustomerID:        "C1",
		Balance:           dec("59.75"),
		CumulativeEarned:  dec("100"),
		CumulativeSpent:   dec("-40.25"),
		CumulativeExpired: decimal.Zero,
		AsOf:              day2,
		TransactionCount:  2,
	}

	mt.Run("save", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		require.NoError(t, newTestRepo(mt).SaveBalances(context.Background(), runID, []ledger.CustomerBalance{balance}))
	})

	mt.Run("get", func(mt *mtest.T) {
		doc, err := newBalanceDocument(runID.String(), balance)
		require.NoError(t, err)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, CustomerBalancesCollection), mtest.FirstBatch, toBSON(t, doc)))

		got, err := newTestRepo(mt).GetBalance(context.Background(), runID, "C1")
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(balance.Balance))
		assert.Equal(t, 2, got.TransactionCount)
		assert.Equal(t, day2, got.AsOf)
	})

	mt.Run("get unknown customer", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt, CustomerBalancesCollection), mtest.FirstBatch))

		_, err := newTestRepo(mt).GetBalance(context.Background(), runID, "nobody")
		assert.ErrorIs(t, err, ledger.ErrSnapshotNotFound{})
	})
}

func TestDocuments_KeepSubMillisecondTimes(t *testing.T) {
	earned := time.Date(2024, 1, 1, 0, 0, 0, 500123, time.UTC)
	spent := earned.Add(250 * time.Nanosecond)

	for _, ts := range []time.Time{earned, spent} {
		doc, err := newSnapshotDocument("run-1", 0, ledger.BalanceSnapshot{
			CustomerID: "C1", TransactionID: "T1", Type: shared.TransactionTypeEarned,
			Amount: dec("1"), CreatedAt: ts, CumulativeEarned: dec("1"), Balance: dec("1"),
		})
		require.NoError(t, err)

		raw, err := bson.Marshal(doc)
		require.NoError(t, err)
		var decoded snapshotDocument
		require.NoError(t, bson.Unmarshal(raw, &decoded))

		got, err := decoded.toDomain()
		require.NoError(t, err)
		assert.True(t, got.CreatedAt.Equal(ts), "snapshot time %s != %s", got.CreatedAt, ts)
	}

	doc, err := newBalanceDocument("run-1", ledger.CustomerBalance{CustomerID: "C1", Balance: dec("1"), AsOf: spent})
	require.NoError(t, err)
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded balanceDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	got, err := decoded.toDomain()
	require.NoError(t, err)
	assert.True(t, got.AsOf.Equal(spent))

	assert.Less(t, ledger.InstantKey(earned), ledger.InstantKey(spent))
}

func TestSnapshotDocument_MissingKey(t *testing.T) {
	_, err := snapshotDocument{TransactionID: "T1", CreatedAt: day1}.toDomain()
	assert.ErrorContains(t, err, "invalid instant key")
}

func TestDecimalCodec(t *testing.T) {
	var codec decimalCodec
	value := dec("12345678901234567890.123456789")
	assert.True(t, value.Equal(codec.decode(codec.encode(value))))
	assert.NoError(t, codec.err)

	tooPrecise := dec("1234567890123456789012345678901234567890")
	codec.encode(tooPrecise)
	assert.Error(t, codec.err)
}

func TestReportIndexes(t *testing.T) {
	indexes := ReportIndexes()
	for _, collection := range []string{RunReportsCollection, QuarantineCollection, ExceptionsCollection, SnapshotsCollection, CustomerBalancesCollection} {
		assert.NotEmpty(t, indexes[collection], collection)
	}
}
