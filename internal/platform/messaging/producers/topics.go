package producers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rewards-reconciler/internal/config"
	"github.com/segmentio/kafka-go"
)

const (
	topicProbeAttempts = 5
	topicProbeBackoff  = 2 * time.Second
)

// topicAdmin is the part of *kafka.Conn used to provision reconciler topics
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// topicConfigFor fills broker defaults for partitions and replication
func topicConfigFor(topic string, cfg *config.KafkaConfig) kafka.TopicConfig {
	tc := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if tc.NumPartitions <= 0 {
		tc.NumPartitions = 1
	}
	if tc.ReplicationFactor <= 0 {
		tc.ReplicationFactor = 1
	}
	return tc
}

// ensureTopic probes the broker for the topic and creates it when no partitions come back.
// An unknown-topic answer skips the remaining probes.
func ensureTopic(ctx context.Context, admin topicAdmin, tc kafka.TopicConfig, backoff time.Duration, log *slog.Logger) error {
	log = log.With("topic", tc.Topic)

	var (
		partitions []kafka.Partition
		err        error
	)
	for attempt := 1; attempt <= topicProbeAttempts; attempt++ {
		partitions, err = admin.ReadPartitions(tc.Topic)
		if err == nil || errors.Is(err, kafka.UnknownTopicOrPartition) {
			break
		}
		log.Warn("Topic probe failed", "attempt", attempt, "error", err)
		if attempt == topicProbeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("topic %s probe interrupted: %w", tc.Topic, ctx.Err())
		case <-time.After(backoff):
		}
	}

	if err == nil && len(partitions) > 0 {
		log.Debug("Topic present", "partitions", len(partitions))
		return nil
	}

	log.Info("Creating topic", "partitions", tc.NumPartitions, "replication_factor", tc.ReplicationFactor, "probe_error", err)
	if err := admin.CreateTopics(tc); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", tc.Topic, err)
	}
	return nil
}

// dialAndEnsureTopic opens a short-lived admin connection for topic provisioning
func dialAndEnsureTopic(ctx context.Context, cfg *config.KafkaConfig, topic string, log *slog.Logger) error {
	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka for topic %s: %w", topic, err)
	}
	defer conn.Close()

	return ensureTopic(ctx, conn, topicConfigFor(topic, cfg), topicProbeBackoff, log)
}
