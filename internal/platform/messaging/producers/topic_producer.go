package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rewards-reconciler/internal/config"
	"github.com/segmentio/kafka-go"
)

// TopicProducer publishes JSON messages to a single Kafka topic
type TopicProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewRunRequestProducer creates the API gateway producer for reconciliation requests
func NewRunRequestProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*TopicProducer, error) {
	if cfg.RequestTopic == "" {
		return nil, fmt.Errorf("kafka request topic is not configured")
	}
	return newTopicProducer(ctx, logger, cfg, cfg.RequestTopic)
}

// NewResultProducer creates the outbox producer for run summaries
func NewResultProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*TopicProducer, error) {
	if cfg.ResultTopic == "" {
		return nil, fmt.Errorf("kafka result topic is not configured")
	}
	return newTopicProducer(ctx, logger, cfg, cfg.ResultTopic)
}

// newTopicProducer ensures the topic exists and builds a synchronous writer.
// Callers mark work as done only after a write is acknowledged.
func newTopicProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig, topic string) (*TopicProducer, error) {
	if err := dialAndEnsureTopic(ctx, cfg, topic, logger); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // Messages of one run stay on one partition
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return &TopicProducer{
		logger: logger.With("topic", topic),
		writer: writer,
		topic:  topic,
	}, nil
}

func (p *TopicProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for topic %s: %w", p.topic, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message", "key", key, "error", err)
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published message", "key", key)
	return nil
}

func (p *TopicProducer) Close() error {
	p.logger.Info("Closing Kafka message producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
