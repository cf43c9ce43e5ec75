package router

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/pubsub"
	"github.com/parcelbase/parcelbase/internal/sentry"
	"github.com/parcelbase/parcelbase/internal/types"
)

// Router manages all message routing
type Router struct {
	router *message.Router
	logger *logger.Logger
	sentry *sentry.Service
	config *config.EventConfig
}

// NewRouter creates a new message router. Messages that exhaust their
// retries land on the poison topic of ps.
func NewRouter(cfg *config.Configuration, log *logger.Logger, sentry *sentry.Service, ps pubsub.PubSub) (*Router, error) {
	wmLogger := logger.NewWatermillAdapter(log)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, err
	}

	poisonQueue, err := middleware.PoisonQueue(&publisherAdapter{ps: ps}, types.TopicPoison)
	if err != nil {
		return nil, err
	}

	router.AddMiddleware(
		poisonQueue,
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:          cfg.Events.MaxRetries,
			InitialInterval:     cfg.Events.InitialInterval,
			MaxInterval:         cfg.Events.MaxInterval,
			Multiplier:          cfg.Events.Multiplier,
			MaxElapsedTime:      cfg.Events.MaxElapsedTime,
			RandomizationFactor: 0.5,
			Logger:              wmLogger,
			OnRetryHook: func(retryNum int, delay time.Duration) {
				log.Infow("retrying message",
					"retry_number", retryNum,
					"max_retries", cfg.Events.MaxRetries,
					"delay", delay,
				)
			},
		}.Middleware,
	)

	return &Router{
		router: router,
		logger: log,
		sentry: sentry,
		config: &cfg.Events,
	}, nil
}

// AddNoPublishHandler adds a handler that doesn't publish messages
func (r *Router) AddNoPublishHandler(
	handlerName string,
	topicName string,
	subscriber message.Subscriber,
	handlerFunc func(msg *message.Message) error,
	middlewares ...message.HandlerMiddleware,
) {
	handler := r.router.AddNoPublisherHandler(
		handlerName,
		topicName,
		&namedSubscriber{name: handlerName, sub: subscriber},
		func(msg *message.Message) error {
			span, ctx := r.sentry.StartMessageSpan(msg.Context(), topicName)
			if span != nil {
				defer span.Finish()
				msg.SetContext(ctx)
			}

			err := handlerFunc(msg)
			if err == nil {
				return nil
			}
			r.sentry.AddBreadcrumb("pubsub", "handler failed", map[string]interface{}{
				"handler":      handlerName,
				"message_uuid": msg.UUID,
			})
			r.sentry.CaptureException(err)
			r.logger.Errorw("handler failed",
				"handler", handlerName,
				"error", err,
				"correlation_id", middleware.MessageCorrelationID(msg),
				"message_uuid", msg.UUID,
			)
			if !shouldRetry(r.logger, err) {
				return nil
			}
			return err
		},
	)

	for _, middleware := range middlewares {
		handler.AddMiddleware(middleware)
	}
}

// Run blocks until ctx is canceled or the router is closed
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("starting router")
	return r.router.Run(ctx)
}

// Running is closed once all handlers are subscribed
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Close gracefully shuts down the router
func (r *Router) Close() error {
	r.logger.Info("closing router")
	return r.router.Close()
}

// publisherAdapter lets our context-aware publisher back watermill's
// poison queue middleware.
type publisherAdapter struct {
	ps pubsub.Publisher
}

func (p *publisherAdapter) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if err := p.ps.Publish(msg.Context(), topic, msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *publisherAdapter) Close() error {
	return nil
}

// namedSubscriber passes the handler name down to the pubsub so each
// handler gets its own consumer group.
type namedSubscriber struct {
	name string
	sub  message.Subscriber
}

func (s *namedSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.sub.Subscribe(pubsub.WithSubscriberName(ctx, s.name), topic)
}

func (s *namedSubscriber) Close() error {
	return s.sub.Close()
}
