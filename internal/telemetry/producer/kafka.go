// Package producer publishes telemetry events to Kafka for downstream analytics.
package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"vehicle-marketplace/backend/internal/telemetry"
	"vehicle-marketplace/backend/internal/telemetry/domain"
)

var _ telemetry.EventEmitter = (*KafkaProducer)(nil)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes request telemetry to Kafka, one message per event keyed by user id.
type KafkaProducer struct {
	writer messageWriter
	topic  string
	log    *zap.Logger
}

// NewKafkaProducer creates a Kafka producer that writes telemetry events to topic.
// It returns nil when brokers or topic are empty. Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string, log *zap.Logger) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaProducer(writer, topic, log)
}

func newKafkaProducer(w messageWriter, topic string, log *zap.Logger) *KafkaProducer {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaProducer{writer: w, topic: topic, log: log}
}

// Emit serializes the event as JSON and writes it keyed by user id, so one user's events stay ordered.
func (p *KafkaProducer) Emit(ctx context.Context, event *domain.Event) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	var key []byte
	if event.UserID != "" {
		key = []byte(event.UserID)
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, kafka.Message{Key: key, Value: payload}); err != nil {
		p.log.Warn("telemetry: kafka emit failed", zap.String("topic", p.topic), zap.Error(err))
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call on a nil producer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
