package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockBatchService struct {
	mock.Mock
}

func (m *MockBatchService) IngestBatch(ctx context.Context, batchID string, records []ledger.RawRecord) error {
	args := m.Called(ctx, batchID, records)
	return args.Error(0)
}

type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) TriggerRun(ctx context.Context, batchID, correlationID string) (*shared.RunRequest, error) {
	args := m.Called(ctx, batchID, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.RunRequest), args.Error(1)
}

func (m *MockReconciliationService) GetRun(ctx context.Context, runID uuid.UUID) (*ledger.RunSummary, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RunSummary), args.Error(1)
}

func (m *MockReconciliationService) GetQuarantine(ctx context.Context, runID uuid.UUID) ([]ledger.QuarantinedRecord, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.QuarantinedRecord), args.Error(1)
}

func (m *MockReconciliationService) GetExceptions(ctx context.Context, runID uuid.UUID) ([]ledger.CustomerException, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.CustomerException), args.Error(1)
}

type MockBalanceService struct {
	mock.Mock
}

func (m *MockBalanceService) ResolveRun(ctx context.Context, runID *uuid.UUID) (*ledger.RunSummary, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RunSummary), args.Error(1)
}

func (m *MockBalanceService) GetBalance(ctx context.Context, runID uuid.UUID, customerID string) (*ledger.CustomerBalance, error) {
	args := m.Called(ctx, runID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.CustomerBalance), args.Error(1)
}

func (m *MockBalanceService) GetBalanceAsOf(ctx context.Context, runID uuid.UUID, customerID string, asOf time.Time) (*ledger.BalanceSnapshot, error) {
	args := m.Called(ctx, runID, customerID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.BalanceSnapshot), args.Error(1)
}

func (m *MockBalanceService) GetHistory(ctx context.Context, runID uuid.UUID, customerID string, page, perPage int) ([]ledger.BalanceSnapshot, int64, error) {
	args := m.Called(ctx, runID, customerID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]ledger.BalanceSnapshot), args.Get(1).(int64), args.Error(2)
}

func (m *MockBalanceService) GetLedger(ctx context.Context, runID uuid.UUID, customerID string) ([]ledger.Transaction, error) {
	args := m.Called(ctx, runID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Transaction), args.Error(1)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

var errStoreDown = errors.New("connection refused")
