package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rewards-reconciler/internal/config"
	"github.com/rewards-reconciler/internal/data/mongo"
	"github.com/rewards-reconciler/internal/data/postgres"
	"github.com/rewards-reconciler/internal/logger"
	"github.com/rewards-reconciler/internal/platform/messaging/consumers"
	"github.com/rewards-reconciler/internal/platform/messaging/producers"
	"github.com/rewards-reconciler/internal/platform/persistence"
	"github.com/rewards-reconciler/internal/reconciler/components"
	"github.com/rewards-reconciler/internal/reconciler/consumer"
	"github.com/rewards-reconciler/internal/reconciler/outbox_poller"
	"github.com/rewards-reconciler/internal/reconciler/service"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("reconciler")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Reconciler",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"quarantine_threshold", cfg.Reconciliation.QuarantineThreshold,
		"balance_tolerance", cfg.Reconciliation.BalanceTolerance,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}
	if err := mongoDB.EnsureIndexes(appCtx, mongo.ReportIndexes()); err != nil {
		log.Error("Failed to create report indexes", "error", err)
		os.Exit(1)
	}

	sourceRepo := postgres.NewRawRecordRepository(log, postgresDB)
	ledgerRepo := postgres.NewMatchedLedgerRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	reportRepo := mongo.NewReportRepository(log, mongoDB.Database())

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Unprocessable run requests are parked here so they do not block the partition
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	resultProducer, err := producers.NewResultProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize result Kafka producer", "error", err)
		os.Exit(1)
	}

	executor := components.CreateExecutor(log, cfg)
	runService := components.CreateRunService(
		postgresDB,
		sourceRepo,
		ledgerRepo,
		outboxRepo,
		reportRepo,
		executor,
		log,
		cfg,
	)

	runRequestHandler := consumer.NewRunRequestHandler(log, runService, dlqProducer)

	resultPublisher := outbox_poller.NewResultPublisher(outboxRepo, resultProducer, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, resultPublisher, log)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.RequestTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.RequestTopic, cfg.Kafka.ConsumerGroup, runRequestHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Outbox Poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Units already started finish; pending ones are skipped and the run is left uncommitted
	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if pool, ok := executor.(*service.WorkerPoolExecutor); ok {
		log.Info("Shutting down worker pool", "running_workers", pool.Running())
		pool.Shutdown()
	}

	var closeErr error
	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
		closeErr = err
	}
	if err := dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
		closeErr = err
	}
	if err := resultProducer.Close(); err != nil {
		log.Error("Error closing result Kafka producer", "error", err)
		closeErr = err
	}

	postgresDB.Close()

	mongoCtx, cancelMongo := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelMongo()
	if err := mongoDB.Close(mongoCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		closeErr = err
	}

	if serviceErr != nil || closeErr != nil {
		log.Error("Reconciler shutdown completed with errors", "service_error", serviceErr, "close_error", closeErr)
		os.Exit(1)
	}
	log.Info("Reconciler shutdown completed successfully")
}
