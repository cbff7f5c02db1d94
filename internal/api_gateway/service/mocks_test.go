package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/stretchr/testify/mock"
)

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

type MockMatchedLedgerRepo struct {
	mock.Mock
}

func (m *MockMatchedLedgerRepo) SaveRun(ctx context.Context, runID uuid.UUID, txs []ledger.Transaction) error {
	args := m.Called(ctx, runID, txs)
	return args.Error(0)
}

func (m *MockMatchedLedgerRepo) ListByCustomer(ctx context.Context, runID uuid.UUID, customerID string) ([]ledger.Transaction, error) {
	args := m.Called(ctx, runID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Transaction), args.Error(1)
}

func (m *MockMatchedLedgerRepo) WithTx(tx pgx.Tx) ledger.MatchedLedgerRepository {
	return m
}

type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockReportRepo struct {
	mock.Mock
}

func (m *MockReportRepo) SaveRunSummary(ctx context.Context, summary *ledger.RunSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func (m *MockReportRepo) GetRunSummary(ctx context.Context, runID uuid.UUID) (*ledger.RunSummary, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RunSummary), args.Error(1)
}

func (m *MockReportRepo) GetLatestPromotableRun(ctx context.Context) (*ledger.RunSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RunSummary), args.Error(1)
}

func (m *MockReportRepo) SaveQuarantine(ctx context.Context, runID uuid.UUID, records []ledger.QuarantinedRecord) error {
	args := m.Called(ctx, runID, records)
	return args.Error(0)
}

func (m *MockReportRepo) GetQuarantine(ctx context.Context, runID uuid.UUID) ([]ledger.QuarantinedRecord, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.QuarantinedRecord), args.Error(1)
}

func (m *MockReportRepo) SaveExceptions(ctx context.Context, runID uuid.UUID, exceptions []ledger.CustomerException) error {
	args := m.Called(ctx, runID, exceptions)
	return args.Error(0)
}

func (m *MockReportRepo) GetExceptions(ctx context.Context, runID uuid.UUID) ([]ledger.CustomerException, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.CustomerException), args.Error(1)
}

func (m *MockReportRepo) SaveSnapshots(ctx context.Context, runID uuid.UUID, snapshots []ledger.BalanceSnapshot) error {
	args := m.Called(ctx, runID, snapshots)
	return args.Error(0)
}

func (m *MockReportRepo) GetHistory(ctx context.Context, runID uuid.UUID, customerID string, limit, offset int) ([]ledger.BalanceSnapshot, error) {
	args := m.Called(ctx, runID, customerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.BalanceSnapshot), args.Error(1)
}

func (m *MockReportRepo) CountHistory(ctx context.Context, runID uuid.UUID, customerID string) (int64, error) {
	args := m.Called(ctx, runID, customerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReportRepo) BalanceAsOf(ctx context.Context, runID uuid.UUID, customerID string, asOf time.Time) (*ledger.BalanceSnapshot, error) {
	args := m.Called(ctx, runID, customerID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.BalanceSnapshot), args.Error(1)
}

func (m *MockReportRepo) SaveBalances(ctx context.Context, runID uuid.UUID, balances []ledger.CustomerBalance) error {
	args := m.Called(ctx, runID, balances)
	return args.Error(0)
}

func (m *MockReportRepo) GetBalance(ctx context.Context, runID uuid.UUID, customerID string) (*ledger.CustomerBalance, error) {
	args := m.Called(ctx, runID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.CustomerBalance), args.Error(1)
}
