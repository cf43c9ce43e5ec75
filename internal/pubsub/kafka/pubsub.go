package kafka

import (
	"context"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cockroachdb/errors"
	"github.com/parcelbase/parcelbase/internal/config"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/pubsub"
)

// PubSub carries status events and audit retries over Kafka so several
// server instances share the webhook and audit consumers. Each named
// handler consumes in its own group, "<consumer_group>.<handler>".
type PubSub struct {
	cfg          *config.KafkaConfig
	saramaConfig *sarama.Config
	wmLogger     watermill.LoggerAdapter
	publisher    message.Publisher
	logger       *logger.Logger

	mu          sync.Mutex
	subscribers map[string]message.Subscriber
}

// NewPubSub connects the watermill kafka publisher. Subscribers connect on
// first use.
func NewPubSub(cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, ierr.NewError("kafka brokers are not configured").
			WithHint("Set kafka.brokers when events.pubsub is kafka").
			Mark(ierr.ErrValidation)
	}

	saramaConfig := SaramaConfig(cfg)
	wmLogger := logger.NewWatermillAdapter(log)

	pub, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               cfg.Kafka.Brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig,
		},
		wmLogger,
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not connect to kafka").
			Mark(ierr.ErrUnavailable)
	}

	log.Infow("using kafka pubsub",
		"brokers", cfg.Kafka.Brokers,
		"consumer_group", cfg.Kafka.ConsumerGroup,
	)

	return &PubSub{
		cfg:          &cfg.Kafka,
		saramaConfig: saramaConfig,
		wmLogger:     wmLogger,
		publisher:    pub,
		logger:       log,
		subscribers:  make(map[string]message.Subscriber),
	}, nil
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.publisher.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	sub, err := p.subscriber(ConsumerGroup(p.cfg.ConsumerGroup, pubsub.SubscriberName(ctx)))
	if err != nil {
		return nil, err
	}
	return sub.Subscribe(ctx, topic)
}

func (p *PubSub) subscriber(group string) (message.Subscriber, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sub, ok := p.subscribers[group]; ok {
		return sub, nil
	}

	sub, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               p.cfg.Brokers,
			ConsumerGroup:         group,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: p.saramaConfig,
		},
		p.wmLogger,
	)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not connect to kafka").
			WithReportableDetails(map[string]any{"consumer_group": group}).
			Mark(ierr.ErrUnavailable)
	}

	p.logger.Debugw("kafka subscriber connected", "consumer_group", group)
	p.subscribers[group] = sub
	return sub, nil
}

func (p *PubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.publisher.Close()
	for group, sub := range p.subscribers {
		err = errors.CombineErrors(err, sub.Close())
		delete(p.subscribers, group)
	}
	return err
}

// ConsumerGroup derives the group a named handler consumes in
func ConsumerGroup(base, handler string) string {
	if handler == "" {
		return base
	}
	return base + "." + handler
}
