package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes DepositCredited events to a Kafka topic. Messages are
// keyed by reference so redeliveries of the same deposit (which cannot happen
// after the idempotency guard, but belt and braces) land on the same
// partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher builds a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event DepositCredited) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal deposit credited: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Reference),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("events: write message: %w", err)
	}
	return nil
}

// Close flushes and shuts down the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
