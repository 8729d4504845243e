package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"marketplace-assistant/internal/config"
	"marketplace-assistant/internal/metrics"
	"marketplace-assistant/internal/models"
)

// Publisher emits one event per answered chat request
type Publisher interface {
	Publish(ctx context.Context, event *models.ChatEvent) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *models.ChatEvent) error { return nil }
func (NopPublisher) Close() error                                     { return nil }

// KafkaPublisher writes chat events to a Kafka topic
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	metrics  *metrics.MetricsCollector
	logger   *zap.Logger
}

// NewPublisher returns a Kafka publisher when events are enabled and a
// NopPublisher otherwise. The producer is closed when the app stops.
func NewPublisher(lc fx.Lifecycle, cfg *config.Config, metricsCollector *metrics.MetricsCollector, logger *zap.Logger) (Publisher, error) {
	if !cfg.Events.Enabled {
		logger.Info("chat event publishing disabled")
		return NopPublisher{}, nil
	}

	producer, err := sarama.NewSyncProducer(cfg.Events.Brokers, producerConfig(cfg.Events))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logger.Info("chat event publisher connected",
		zap.Strings("brokers", cfg.Events.Brokers),
		zap.String("topic", cfg.Events.Topic))

	p := NewKafkaPublisher(producer, cfg.Events.Topic, metricsCollector, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.Close()
		},
	})
	return p, nil
}

func producerConfig(ec config.EventsConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = ec.ClientID
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true
	return sc
}

// NewKafkaPublisher wraps an existing producer
func NewKafkaPublisher(producer sarama.SyncProducer, topic string, m *metrics.MetricsCollector, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		metrics:  m,
		logger:   logger,
	}
}

// Publish sends the event keyed by user so one user's events stay ordered.
// Anonymous events are keyed by event id.
func (p *KafkaPublisher) Publish(ctx context.Context, event *models.ChatEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal chat event: %w", err)
	}

	key := event.UserID
	if key == "" {
		key = event.ID.String()
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		p.metrics.RecordEventPublished("error")
		return fmt.Errorf("failed to publish chat event: %w", err)
	}

	p.metrics.RecordEventPublished("success")
	p.logger.Debug("chat event published",
		zap.String("event_id", event.ID.String()),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return nil
}

// Close closes the producer
func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
