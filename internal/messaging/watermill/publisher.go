// Package watermill publishes order events through a watermill message.Publisher.
// In production that is the watermill-kafka (sarama) publisher.
package watermill

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging"
)

// PartitionKeyMetadata carries the event key; the Kafka marshaler partitions on it.
const PartitionKeyMetadata = "partition_key"

type publisher struct {
	pub message.Publisher
}

// NewPublisher adapts any watermill publisher to messaging.Publisher.
func NewPublisher(pub message.Publisher) messaging.Publisher {
	return &publisher{pub: pub}
}

// NewKafkaPublisher builds a watermill-kafka publisher on a synchronous sarama producer.
func NewKafkaPublisher(brokers []string, logger *slog.Logger) (messaging.Publisher, error) {
	saramaConfig := kafka.DefaultSaramaSyncPublisherConfig()
	saramaConfig.ClientID = "storefront"
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll

	pub, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers: brokers,
			Marshaler: kafka.NewWithPartitioningMarshaler(func(topic string, msg *message.Message) (string, error) {
				return msg.Metadata.Get(PartitionKeyMetadata), nil
			}),
			OverwriteSaramaConfig: saramaConfig,
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create watermill kafka publisher: %w", err)
	}
	return NewPublisher(pub), nil
}

func (p *publisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(PartitionKeyMetadata, key)
	msg.SetContext(ctx)

	if err := p.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", topic, err)
	}
	return nil
}

func (p *publisher) Close() error {
	return p.pub.Close()
}
