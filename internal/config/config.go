// Package config loads and validates settings shared by the reconciler and the API gateway.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the validated settings tree, one section per subsystem
type Config struct {
	Application    ApplicationConfig
	Logging        LoggingConfig
	Server         ServerConfig
	Kafka          KafkaConfig
	Postgres       PostgresConfig
	MongoDB        MongoDBConfig
	Outbox         OutboxConfig
	WorkerPool     WorkerPoolConfig
	Reconciliation ReconciliationConfig
}

type ApplicationConfig struct {
	Env  string
	Name string
}

type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration // grace period for in-flight requests
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	RequestTopic      string // run requests consumed by the reconciler
	ResultTopic       string // run summaries relayed from the outbox
	DLQTopic          string // undecodable run requests
	NumPartitions     int    // used when a topic has to be created
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string // directory holding the golang-migrate files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig drives the run summary relay
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int // attempts before a message is marked FAILED_TO_PUBLISH
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of customer units processed concurrently
}

// ReconciliationConfig contains the thresholds applied to every run
type ReconciliationConfig struct {
	QuarantineThreshold float64 // Maximum quarantined/input ratio before the batch halts
	BalanceTolerance    string  // Decimal tolerance for the balance equation check
	HistoryPageSize     int     // Default page size for balance history queries
}

// Tolerance returns the parsed balance equation tolerance, zero if unparsable
func (c *ReconciliationConfig) Tolerance() decimal.Decimal {
	tolerance, err := decimal.NewFromString(c.BalanceTolerance)
	if err != nil {
		return decimal.Zero
	}
	return tolerance
}

// problems collects every invalid setting so one startup failure reports all of them
type problems []string

func (p *problems) expect(ok bool, msg string) {
	if !ok {
		*p = append(*p, msg)
	}
}

func (p *problems) positive(d time.Duration, key string) {
	p.expect(d > 0, key+" must be greater than 0")
}

func (p *problems) required(value, key string) {
	p.expect(value != "", key+" is required")
}

func (c *Config) validate() error {
	var p problems

	p.expect(c.Server.Port > 0, "SERVER_PORT must be greater than 0")
	p.positive(c.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")
	p.positive(c.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	p.positive(c.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	p.positive(c.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT")

	p.required(c.Kafka.Brokers, "KAFKA_BROKERS")
	p.required(c.Kafka.RequestTopic, "KAFKA_REQUEST_TOPIC")
	p.required(c.Kafka.ResultTopic, "KAFKA_RESULT_TOPIC")
	p.required(c.Kafka.DLQTopic, "KAFKA_DLQ_TOPIC")
	p.required(c.Kafka.ConsumerGroup, "KAFKA_CONSUMER_GROUP")
	p.expect(c.Kafka.MinBytes > 0, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	p.expect(c.Kafka.MaxBytes >= c.Kafka.MinBytes, "KAFKA_CONSUMER_MAX_BYTES must not be below KAFKA_CONSUMER_MIN_BYTES")
	p.positive(c.Kafka.MaxWait, "KAFKA_CONSUMER_MAX_WAIT")

	p.required(c.Postgres.URL, "POSTGRES_URL")
	p.expect(c.Postgres.MinConns > 0, "POSTGRES_MIN_CONNS must be greater than 0")
	p.expect(c.Postgres.MaxConns >= c.Postgres.MinConns, "POSTGRES_MAX_CONNS must not be below POSTGRES_MIN_CONNS")
	p.positive(c.Postgres.ConnMaxLifetime, "POSTGRES_MAX_CONN_LIFETIME")
	p.positive(c.Postgres.ConnMaxIdleTime, "POSTGRES_MAX_CONN_IDLE_TIME")

	p.required(c.MongoDB.URI, "MONGO_URI")
	p.required(c.MongoDB.Database, "MONGO_DATABASE")
	p.positive(c.MongoDB.Timeout, "MONGO_TIMEOUT")
	p.expect(c.MongoDB.MinPoolSize > 0, "MONGO_MIN_POOL_SIZE must be greater than 0")
	p.expect(c.MongoDB.MaxPoolSize >= c.MongoDB.MinPoolSize, "MONGO_MAX_POOL_SIZE must not be below MONGO_MIN_POOL_SIZE")
	p.positive(c.MongoDB.MaxConnIdleTime, "MONGO_MAX_CONN_IDLE_TIME")

	p.positive(c.Outbox.PollingInterval, "OUTBOX_POLLING_INTERVAL")
	p.expect(c.Outbox.BatchSize > 0, "OUTBOX_BATCH_SIZE must be greater than 0")
	p.expect(c.Outbox.MaxRetryAttempts > 0, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")

	p.expect(c.WorkerPool.Size > 0, "WORKER_POOL_SIZE must be greater than 0")

	r := c.Reconciliation
	p.expect(r.QuarantineThreshold >= 0 && r.QuarantineThreshold <= 1, "RECONCILE_QUARANTINE_THRESHOLD must be between 0 and 1")
	if tolerance, err := decimal.NewFromString(r.BalanceTolerance); err != nil {
		p.expect(false, "RECONCILE_BALANCE_TOLERANCE must be a decimal number")
	} else {
		p.expect(!tolerance.IsNegative(), "RECONCILE_BALANCE_TOLERANCE must not be negative")
	}
	p.expect(r.HistoryPageSize > 0, "RECONCILE_HISTORY_PAGE_SIZE must be greater than 0")

	if len(p) > 0 {
		return errors.New(strings.Join(p, ", "))
	}
	return nil
}
