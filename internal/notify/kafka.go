package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"civicdesk/internal/platform/kafka"
)

// DefaultTopic is where lifecycle events land unless overridden.
const DefaultTopic = "civicdesk.protocol.events"

// KafkaNotifier publishes events as JSON records keyed by protocol id, so
// one protocol's events stay ordered within a partition.
type KafkaNotifier struct {
	producer *kafka.Producer
	topic    string
}

// KafkaOption configures a KafkaNotifier.
type KafkaOption func(*KafkaNotifier)

// WithTopic overrides the destination topic.
func WithTopic(topic string) KafkaOption {
	return func(n *KafkaNotifier) {
		if topic != "" {
			n.topic = topic
		}
	}
}

func NewKafka(producer *kafka.Producer, opts ...KafkaOption) *KafkaNotifier {
	n := &KafkaNotifier{
		producer: producer,
		topic:    DefaultTopic,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

func (n *KafkaNotifier) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode lifecycle event: %w", err)
	}
	return n.producer.Publish(ctx, kafka.Message{
		Topic: n.topic,
		Key:   []byte(event.ProtocolID.String()),
		Value: value,
	})
}
