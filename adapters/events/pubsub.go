package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// consumerGroup is shared by every instance so each event is handled once
const consumerGroup = "signon-notifications"

// NewPubSub returns a Redis Streams pair when client is set, otherwise an in-process channel
func NewPubSub(client *redis.Client, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	if client == nil {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		return ch, ch, nil
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: client},
		logger,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}

	subscriber, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client:        client,
			ConsumerGroup: consumerGroup,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return nil, nil, fmt.Errorf("failed to create redis subscriber: %w", err)
	}

	return publisher, subscriber, nil
}
