package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/core/logger"
	"storefront/internal/features/orders/domain"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher publishes order events keyed by public id, so all
// events of one order land on the same partition in order.
type KafkaEventPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaEventPublisher creates a publisher writing to topic on brokers.
func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	logger.Get().Info("Kafka order publisher initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &KafkaEventPublisher{writer: w, topic: topic}
}

// Publish writes one event.
func (p *KafkaEventPublisher) Publish(ctx context.Context, evt domain.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: data,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: failed to publish %s to %s: %w", evt.Type, p.topic, err)
	}

	logger.FromContext(ctx).Debug("Order event published",
		zap.String("type", string(evt.Type)),
		zap.String("order_id", evt.OrderID),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// LogEventPublisher writes events to the log when no broker is configured.
type LogEventPublisher struct{}

// NewLogEventPublisher creates a LogEventPublisher.
func NewLogEventPublisher() *LogEventPublisher {
	return &LogEventPublisher{}
}

// Publish logs the event at info level.
func (LogEventPublisher) Publish(ctx context.Context, evt domain.Event) error {
	logger.FromContext(ctx).Info("Order event",
		zap.String("event_id", evt.ID),
		zap.String("type", string(evt.Type)),
		zap.String("order_id", evt.OrderID),
		zap.String("user_id", evt.OwnerID),
		zap.String("order_status", string(evt.Status)),
		zap.String("payment_status", string(evt.PaymentStatus)),
	)
	return nil
}
