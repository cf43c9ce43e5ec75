package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/parcelbase/parcelbase/internal/config"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/httpclient"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/pubsub"
	pubsubRouter "github.com/parcelbase/parcelbase/internal/pubsub/router"
	"github.com/parcelbase/parcelbase/internal/svix"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/parcelbase/parcelbase/internal/webhook/payload"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// HeaderEventID lets receivers drop redeliveries of the same event
const HeaderEventID = "X-Parcelbase-Event-Id"

const maxParallelDeliveries = 8

// Handler interface for processing webhook events
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
	// ProcessMessage delivers one status event
	ProcessMessage(msg *message.Message) error
}

type handler struct {
	pubSub     pubsub.PubSub
	config     *config.WebhookConfig
	factory    payload.PayloadBuilderFactory
	client     httpclient.Client
	logger     *logger.Logger
	svixClient *svix.Client
}

func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	factory payload.PayloadBuilderFactory,
	client httpclient.Client,
	logger *logger.Logger,
	svixClient *svix.Client,
) Handler {
	return &handler{
		pubSub:     pubSub,
		config:     &cfg.Webhook,
		factory:    factory,
		client:     client,
		logger:     logger,
		svixClient: svixClient,
	}
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"webhook_handler",
		types.TopicPackageStatusEvent,
		h.pubSub,
		h.ProcessMessage,
	)
}

func (h *handler) ProcessMessage(msg *message.Message) error {
	ctx := msg.Context()
	toStatus := types.PackageStatus(msg.Metadata.Get("to_status"))

	builder, err := h.factory.GetBuilder(types.TopicPackageStatusEvent)
	if err != nil {
		return err
	}

	body, err := builder.BuildPayload(ctx, types.TopicPackageStatusEvent, json.RawMessage(msg.Payload))
	if err != nil {
		h.logger.Errorw("failed to build webhook payload",
			"error", err,
			"message_uuid", msg.UUID,
		)
		// malformed events never succeed
		return nil
	}

	if h.svixClient.Enabled() {
		if err := h.svixClient.SendMessage(ctx, types.TopicPackageStatusEvent, body); err != nil {
			h.logger.Errorw("failed to send webhook via Svix",
				"error", err,
				"message_uuid", msg.UUID,
			)
			return err
		}
		h.logger.Infow("webhook sent via Svix", "message_uuid", msg.UUID, "to_status", toStatus)
		return nil
	}

	return h.processMessageNative(ctx, msg.UUID, toStatus, body)
}

// processMessageNative posts to every endpoint subscribed to toStatus in
// parallel. A retry redelivers to all of them; receivers dedupe on
// HeaderEventID.
func (h *handler) processMessageNative(ctx context.Context, eventID string, toStatus types.PackageStatus, body []byte) error {
	endpoints := lo.Filter(h.config.Endpoints, func(e config.WebhookEndpoint, _ int) bool {
		return len(e.Statuses) == 0 || lo.Contains(e.Statuses, toStatus)
	})

	p := pool.NewWithResults[error]().WithMaxGoroutines(maxParallelDeliveries)
	for _, endpoint := range endpoints {
		p.Go(func() error {
			return h.deliver(ctx, endpoint, eventID, toStatus, body)
		})
	}

	// keep the most retryable failure so the router decides correctly
	var failed error
	for _, err := range p.Wait() {
		if err != nil && (failed == nil || ierr.IsUnavailable(err)) {
			failed = err
		}
	}
	return failed
}

func (h *handler) deliver(ctx context.Context, endpoint config.WebhookEndpoint, eventID string, toStatus types.PackageStatus, body []byte) error {
	headers := lo.Assign(endpoint.Headers, map[string]string{HeaderEventID: eventID})
	resp, err := h.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     endpoint.URL,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		h.logger.Errorw("failed to send webhook",
			"error", err,
			"endpoint", endpoint.Name,
			"message_uuid", eventID,
		)
		return err
	}

	h.logger.Infow("webhook sent",
		"endpoint", endpoint.Name,
		"message_uuid", eventID,
		"to_status", toStatus,
		"status_code", resp.StatusCode,
	)
	return nil
}
