package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mock implementations of the dependencies

type MockSourceRepo struct {
	mock.Mock
}

func (m *MockSourceRepo) InsertBatch(ctx context.Context, batchID string, records []ledger.RawRecord) error {
	args := m.Called(ctx, batchID, records)
	return args.Error(0)
}

func (m *MockSourceRepo) ListByBatch(ctx context.Context, batchID string) ([]ledger.RawRecord, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.RawRecord), args.Error(1)
}

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Reconcile(ctx context.Context, records []ledger.RawRecord, cfg ledger.RunConfig) (*ledger.RunResult, error) {
	args := m.Called(ctx, records, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RunResult), args.Error(1)
}

type MockLedgerWriter struct {
	mock.Mock
}

func (m *MockLedgerWriter) WriteRun(ctx context.Context, tx pgx.Tx, result *ledger.RunResult) error {
	args := m.Called(ctx, tx, result)
	return args.Error(0)
}

func (m *MockLedgerWriter) WriteFailure(ctx context.Context, tx pgx.Tx, summary *ledger.RunSummary) error {
	args := m.Called(ctx, tx, summary)
	return args.Error(0)
}

type MockReportRecorder struct {
	mock.Mock
}

func (m *MockReportRecorder) RecordResult(ctx context.Context, result *ledger.RunResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockReportRecorder) RecordFailure(ctx context.Context, result *ledger.RunResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockReportRecorder) IsProcessed(ctx context.Context, request *shared.RunRequest) (bool, error) {
	args := m.Called(ctx, request)
	return args.Bool(0), args.Error(1)
}

// fakeTxRunner runs fn with a nil transaction, or fails to begin
type fakeTxRunner struct {
	beginErr error
	calls    int
}

func (f *fakeTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	f.calls++
	if f.beginErr != nil {
		return f.beginErr
	}
	return fn(nil)
}

func TestRunService_ProcessRun(t *testing.T) {
	request := &shared.RunRequest{
		RunID:         uuid.New(),
		BatchID:       "batch-42",
		CorrelationID: "corr-1",
		RequestedAt:   time.Now(),
	}
	records := []ledger.RawRecord{
		{RowNumber: 1, CustomerID: "C1", TransactionID: "E1", Type: "Earned", Amount: "10", CreatedAt: "2024-01-01"},
	}
	settings := RunSettings{
		QuarantineThreshold: 0.05,
		BalanceTolerance:    decimal.RequireFromString("0.01"),
	}
	matchesRequest := mock.MatchedBy(func(cfg ledger.RunConfig) bool {
		return cfg.RunID == request.RunID &&
			cfg.BatchID == request.BatchID &&
			cfg.CorrelationID == request.CorrelationID &&
			cfg.QuarantineThreshold == 0.05 &&
			cfg.BalanceTolerance.Equal(settings.BalanceTolerance)
	})
	completed := &ledger.RunResult{Summary: ledger.RunSummary{RunID: request.RunID, Status: shared.RunStatusCompleted}}
	failed := &ledger.RunResult{Summary: ledger.RunSummary{
		RunID:     request.RunID,
		Status:    shared.RunStatusFailed,
		FaultCode: shared.FaultSchemaValidation,
	}}
	dbError := errors.New("db error")

	tests := []struct {
		name          string
		setupMocks    func(source *MockSourceRepo, pipeline *MockPipeline, writer *MockLedgerWriter, recorder *MockReportRecorder)
		beginErr      error
		expectedError error
	}{
		{
			name: "successful run",
			setupMocks: func(source *MockSourceRepo, pipeline *MockPipeline, writer *MockLedgerWriter, recorder *MockReportRecorder) {
				recorder.On("IsProcessed", mock.Anything, request).Return(false, nil).Once()
				source.On("ListByBatch", mock.Anything, "batch-42").Return(records, nil).Once()
				pipeline.On("Reconcile", mock.Anything, records, matchesRequest).Return(completed, nil).Once()
				writer.On("WriteRun", mock.Anything, nil, completed).Return(nil).Once()
				recorder.On("RecordResult", mock.Anything, completed).Return(nil).Once()
			},
		},
		{
			name: "already processed",
			setupMocks: func(source *MockSourceRepo, pipeline *MockPipeline, writer *MockLedgerWriter, recorder *MockReportRecorder) {
				recorder.On("IsProcessed", mock.Anything, request).Return(true, nil).Once()
			},
		},
		{
			name: "idempotency check error",
			setupMocks: func(source *MockSourceRepo, pipeline *MockPipeline, writer *MockLedgerWriter, recorder *MockReportRecorder) {
				recorder.On("IsProcessed", mock.Anything, request).Return(false, dbError).Once()
			},
			expectedError: dbError,
		},
		{
			name: "batch not found is recorded as failed run",
			setupMocks: func(source *MockSourceRepo, pipeline *MockPipeline, writer *MockLedgerWriter, recorder *MockReportRecorder) {
				recorder.On("IsProcessed", mock.Anything, request).Return(false, nil).Once()
				source.On("ListByBatch", mock.Anything, "batch-42").Return(nil, ledger.ErrBatchNotFound).Once()
				writer.On("WriteFailure", mock.Anything, nil, mock.MatchedBy(func(s *ledger.RunSummary) bool {
					return s.Status == shared.RunStatusFailed && s.RunID == request.RunID && s.FaultDetail == ledger.ErrBatchNotFound.Error()
				})).Return(nil).Once()
				recorder.On("RecordFailure", mock.Anything, mock.MatchedBy(func(r *ledger.RunResult) bool {
					return r.Summary.Status == shared.RunStatusFailed && r.Summary.CompletedAt != nil
				})).Return(nil).Once()
			},
		},
		{
			name: "batch load error is retried",
			setupMocks: func(source *MockSourceRepo, pipeline *MockPipeline, writer *MockLedgerWriter, recorder *MockReportRecorder) {
				recorder.On("IsProcessed", mock.Anything, request).Return(false, nil).Once()
				source.On("ListByBatch", mock.Anything, "batch-42").Return(nil, dbError).Once()
			},
			expectedError: dbError,
		},
		{
			name: "fatal fault is recorded and acknowledged",
			setupMocks: func(source *MockSourceRepo, pipeline *MockPipeline, writer *MockLedgerWriter, recorder *MockReportRecorder) {
				fault := ledger.SchemaValidationFault{Total: 10, Quarantined: 5, Ratio: 0.5, Threshold: 0.05}
				recorder.On("IsProcessed", mock.Anything, request).Return(false, nil).Once()
				source.On("ListByBatch", mock.Anything, "batch-42").Return(records, nil).Once()
				pipeline.On("Reconcile", mock.Anything, records, matchesRequest).Return(failed, fault).Once()
				writer.On("WriteFailure", mock.Anything, nil, &failed.Summary).Return(nil).Once()
				recorder.On("RecordFailure", mock.Anything, failed).Return(nil).Once()
			},
		},
		{
			name: "cancellation is returned",
			setupMocks: func(source *MockSourceRepo, pipeline *MockPipeline, writer *MockLedgerWriter, recorder *MockReportRecorder) {
				recorder.On("IsProcessed", mock.Anything, request).Return(false, nil).Once()
				source.On("ListByBatch", mock.Anything, "batch-42").Return(records, nil).Once()
				pipeline.On("Reconcile", mock.Anything, records, matchesRequest).Return(nil, ledger.ErrBatchCanceled).Once()
			},
			expectedError: ledger.ErrBatchCanceled,
		},
		{
			name: "ledger write error",
			setupMocks: func(source *MockSourceRepo, pipeline *MockPipeline, writer *MockLedgerWriter, recorder *MockReportRecorder) {
				recorder.On("IsProcessed", mock.Anything, request).Return(false, nil).Once()
				source.On("ListByBatch", mock.Anything, "batch-42").Return(records, nil).Once()
				pipeline.On("Reconcile", mock.Anything, records, matchesRequest).Return(completed, nil).Once()
				writer.On("WriteRun", mock.Anything, nil, completed).Return(dbError).Once()
			},
			expectedError: dbError,
		},
		{
			name: "begin transaction error",
			setupMocks: func(source *MockSourceRepo, pipeline *MockPipeline, writer *MockLedgerWriter, recorder *MockReportRecorder) {
				recorder.On("IsProcessed", mock.Anything, request).Return(false, nil).Once()
				source.On("ListByBatch", mock.Anything, "batch-42").Return(records, nil).Once()
				pipeline.On("Reconcile", mock.Anything, records, matchesRequest).Return(completed, nil).Once()
			},
			beginErr:      dbError,
			expectedError: dbError,
		},
		{
			name: "report recording error",
			setupMocks: func(source *MockSourceRepo, pipeline *MockPipeline, writer *MockLedgerWriter, recorder *MockReportRecorder) {
				recorder.On("IsProcessed", mock.Anything, request).Return(false, nil).Once()
				source.On("ListByBatch", mock.Anything, "batch-42").Return(records, nil).Once()
				pipeline.On("Reconcile", mock.Anything, records, matchesRequest).Return(completed, nil).Once()
				writer.On("WriteRun", mock.Anything, nil, completed).Return(nil).Once()
				recorder.On("RecordResult", mock.Anything, completed).Return(dbError).Once()
			},
			expectedError: dbError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &MockSourceRepo{}
			pipeline := &MockPipeline{}
			writer := &MockLedgerWriter{}
			recorder := &MockReportRecorder{}
			tt.setupMocks(source, pipeline, writer, recorder)

			runService := NewRunService(&fakeTxRunner{beginErr: tt.beginErr}, source, pipeline, writer, recorder, settings, slog.Default())
			err := runService.ProcessRun(context.Background(), request)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}

			source.AssertExpectations(t)
			pipeline.AssertExpectations(t)
			writer.AssertExpectations(t)
			recorder.AssertExpectations(t)
		})
	}
}
