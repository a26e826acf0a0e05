package watermill

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging"
)

func TestPublisher_PublishesJSONWithPartitionKey(t *testing.T) {
	defer goleak.VerifyNone(t)

	logger := watermill.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, messaging.TopicOrderPlaced)
	require.NoError(t, err)

	pub := NewPublisher(pubSub)
	event := entity.OrderPlaced{OrderID: "o1", OrderNumber: "ORD1", UserID: "u1"}
	require.NoError(t, pub.PublishEvent(ctx, messaging.TopicOrderPlaced, "o1", event))

	select {
	case msg := <-messages:
		assert.Equal(t, "o1", msg.Metadata.Get(PartitionKeyMetadata))
		var got entity.OrderPlaced
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, "ORD1", got.OrderNumber)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}

	require.NoError(t, pub.Close())
}

func TestPublisher_FailsAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	pub := NewPublisher(pubSub)
	require.NoError(t, pub.Close())

	err := pub.PublishEvent(context.Background(), messaging.TopicOrderCancelled, "o1", entity.OrderCancelledEvent{OrderID: "o1"})
	assert.Error(t, err)
}
