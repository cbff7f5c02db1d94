package components

import (
	"log/slog"

	"github.com/rewards-reconciler/internal/config"
	"github.com/rewards-reconciler/internal/domain/ledger"
	"github.com/rewards-reconciler/internal/domain/outbox"
	"github.com/rewards-reconciler/internal/reconciler/service"
)

// CreateExecutor builds the per-customer executor, falling back to sequential execution
// when the worker pool cannot be created.
func CreateExecutor(logger *slog.Logger, cfg *config.Config) service.CustomerExecutor {
	executor, err := service.NewWorkerPoolExecutor(
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool executor, falling back to sequential execution", "error", err)
		return service.SequentialExecutor{}
	}

	logger.Info("Created worker pool executor", "pool_size", cfg.WorkerPool.Size)
	return executor
}

// CreatePipeline wires the four reconciliation stages
func CreatePipeline(executor service.CustomerExecutor, logger *slog.Logger) *service.PipelineService {
	return service.NewPipelineService(
		NewSourceValidator(logger),
		NewFIFOMatcher(),
		NewResultValidator(logger),
		NewBalanceHistoryBuilder(),
		executor,
		logger.With("component", "pipeline"),
	)
}

// CreateRunService creates a new RunService with all its dependencies.
func CreateRunService(
	txRunner service.TxRunner,
	sourceRepo ledger.SourceRepository,
	ledgerRepo ledger.MatchedLedgerRepository,
	outboxRepo outbox.Repository,
	reportRepo ledger.ReportRepository,
	executor service.CustomerExecutor,
	logger *slog.Logger,
	cfg *config.Config,
) service.RunService {
	return service.NewRunService(
		txRunner,
		sourceRepo,
		CreatePipeline(executor, logger),
		NewLedgerWriter(ledgerRepo, outboxRepo, logger),
		NewReportRecorder(reportRepo, logger),
		service.RunSettings{
			QuarantineThreshold: cfg.Reconciliation.QuarantineThreshold,
			BalanceTolerance:    cfg.Reconciliation.Tolerance(),
		},
		logger.With("component", "run_service"),
	)
}
