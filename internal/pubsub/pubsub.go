package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher publishes messages to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
	Close() error
}

// Subscriber consumes messages from a topic
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// PubSub combines both Publisher and Subscriber interfaces
type PubSub interface {
	Publisher
	Subscriber
}

type subscriberNameKey struct{}

// WithSubscriberName tags a Subscribe call with the name of the consuming
// handler. Brokers with consumer groups give each name its own group so
// every handler sees every message.
func WithSubscriberName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, subscriberNameKey{}, name)
}

// SubscriberName returns the handler name set by WithSubscriberName
func SubscriberName(ctx context.Context) string {
	name, _ := ctx.Value(subscriberNameKey{}).(string)
	return name
}
