// Package bridge connects eventsys registries to watermill topics, so a local
// broadcast can leave the process boundary of one component and re-enter
// another registry as a broadcast.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/nfrund/eventsys/pkg/eventsys"
)

const (
	// Metadata keys carried on every forwarded watermill message.
	metaKeyTopic    = "topic"
	metaKeyRegistry = "registry"
)

// NewGoChannel initializes an in-memory watermill Pub/Sub.
func NewGoChannel() *gochannel.GoChannel {
	logger := watermill.NewStdLogger(false, false)
	return gochannel.NewGoChannel(gochannel.Config{}, logger)
}

// Forward subscribes to reg and publishes every broadcast on topic as a JSON
// payload. Forwarding stops when the returned subscription is closed.
func Forward[A any](reg *eventsys.Registry[A], pub message.Publisher, topic string) *eventsys.Subscription[A] {
	registry := reg.Name()

	return reg.Subscribe(func(args A) error {
		payload, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode payload for topic %s: %w", topic, err)
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set(metaKeyTopic, topic)
		msg.Metadata.Set(metaKeyRegistry, registry)

		if err := pub.Publish(topic, msg); err != nil {
			return fmt.Errorf("publish to topic %s: %w", topic, err)
		}
		return nil
	})
}

// Feed consumes topic and broadcasts each decoded payload on reg. It returns
// once the watermill subscription is established; messages are processed in
// the background until ctx is canceled or the subscriber is closed.
//
// Messages are always acked: a payload that cannot be decoded would never
// decode on redelivery, and a broadcast with failing subscribers has already
// reached every other subscriber.
func Feed[A any](ctx context.Context, sub message.Subscriber, topic string, reg *eventsys.Registry[A]) error {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe to topic %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			var args A
			if err := json.Unmarshal(msg.Payload, &args); err != nil {
				slog.Error("Failed to decode message", "topic", topic, "msg_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}

			if err := reg.NotifyContext(msg.Context(), args); err != nil {
				slog.Error("Failed to handle message", "topic", topic, "msg_id", msg.UUID, "error", err)
			}
			msg.Ack()
		}
		slog.Debug("Feed message loop ended", "topic", topic, "registry", reg.Name())
	}()

	return nil
}
