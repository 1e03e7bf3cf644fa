package repository

import (
	"context"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	pkgkafka "SignalDesk/pkg/kafka"
)

// KafkaEventPublisher publishes lifecycle events keyed by usage id, so all
// events for one commitment land on the same partition in order.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates the Kafka publisher.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, ev models.LifecycleEvent) error {
	key := []byte(ev.UsageID)
	if len(key) == 0 {
		key = []byte(string(ev.Type))
	}
	return p.producer.Publish(ctx, p.topic, key, ev)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
