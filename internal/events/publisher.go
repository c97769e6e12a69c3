// Package events publishes service events (alert state changes, simulated
// webhook receipts) to a Kafka topic as JSON messages.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/alerts"
	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/observability"
)

// Event types written by the service besides alert events.
const (
	TypeWebhookReceived = "webhook.received"
)

// Envelope is the message value written to the topic.
type Envelope struct {
	EventID    string      `json:"event_id"`
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Publisher writes envelopes somewhere durable.
type Publisher interface {
	Publish(ctx context.Context, envs ...Envelope) error
	Close() error
}

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaConfig configures KafkaPublisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// KafkaPublisher produces envelopes to one topic, keyed so that events for the
// same station land on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaPublisher creates a producer for cfg.Topic. The writer connects lazily.
func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, topic: cfg.Topic, logger: logger}
}

// Publish serializes and writes envs in a single WriteMessages call.
func (p *KafkaPublisher) Publish(ctx context.Context, envs ...Envelope) error {
	if len(envs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(envs))
	for i := range envs {
		msg, err := serializeToMessage(envs[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		for _, e := range envs {
			observability.EventsPublishedTotal.WithLabelValues(e.Type, "error").Inc()
		}
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), p.topic, err)
	}
	for _, e := range envs {
		observability.EventsPublishedTotal.WithLabelValues(e.Type, "success").Inc()
	}
	p.logger.Debug("events published", zap.String("topic", p.topic), zap.Int("count", len(envs)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an Envelope into a Kafka message.
func serializeToMessage(env Envelope) (kafkago.Message, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s event: %w", env.Type, err)
	}
	return kafkago.Message{
		Key:   []byte(env.Key),
		Value: data,
		Time:  env.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "event_id", Value: []byte(env.EventID)},
			{Key: "event_type", Value: []byte(env.Type)},
			{Key: "occurred_at", Value: []byte(env.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}

// NopPublisher discards envelopes. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Envelope) error { return nil }
func (NopPublisher) Close() error { return nil }

// FromAlert wraps an alert event, keyed by station.
func FromAlert(ev alerts.Event) Envelope {
	return Envelope{
		EventID:    ev.EventID,
		Type:       ev.Type,
		Key:        ev.Alert.StationID,
		OccurredAt: ev.OccurredAt,
		Payload:    ev.Alert,
	}
}

// FromWebhook wraps a simulated webhook receipt, keyed by its event id.
func FromWebhook(ev models.WebhookEvent) Envelope {
	return Envelope{
		EventID:    ev.EventID,
		Type:       TypeWebhookReceived,
		Key:        ev.EventID,
		OccurredAt: ev.ReceivedAt,
		Payload:    ev,
	}
}

// AlertNotifier forwards alert events to a Publisher.
type AlertNotifier struct {
	pub Publisher
}

// NewAlertNotifier returns an alerts.Notifier backed by pub.
func NewAlertNotifier(pub Publisher) *AlertNotifier {
	return &AlertNotifier{pub: pub}
}

func (n *AlertNotifier) Name() string { return "kafka" }

func (n *AlertNotifier) Notify(ctx context.Context, ev alerts.Event) error {
	return n.pub.Publish(ctx, FromAlert(ev))
}
