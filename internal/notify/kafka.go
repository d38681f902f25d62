package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notifications to a Kafka topic consumed by the notification worker.
type KafkaNotifier struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaNotifier returns a notifier writing to topic on brokers, or nil when either is empty.
// Call Close when shutting down.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 20 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (n *KafkaNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	return n.publish(ctx, Message{Kind: KindPasswordReset, To: email, Secret: token})
}

func (n *KafkaNotifier) SendEmailVerification(ctx context.Context, email, token string) error {
	return n.publish(ctx, Message{Kind: KindEmailVerification, To: email, Secret: token})
}

func (n *KafkaNotifier) SendPhoneCode(ctx context.Context, phone, code string) error {
	return n.publish(ctx, Message{Kind: KindPhoneCode, To: phone, Secret: code})
}

// publish keys messages by recipient so notifications to one address stay ordered.
func (n *KafkaNotifier) publish(ctx context.Context, msg Message) error {
	msg.CreatedAt = n.now()
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := n.writer.WriteMessages(writeCtx, kafka.Message{Key: []byte(msg.To), Value: payload}); err != nil {
		return fmt.Errorf("notify: publish %s: %w", msg.Kind, err)
	}
	return nil
}

// Close closes the Kafka writer. Safe on a nil notifier.
func (n *KafkaNotifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}
