package webhook

import (
	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/logger"
	pubsubRouter "github.com/parcelbase/parcelbase/internal/pubsub/router"
	"github.com/parcelbase/parcelbase/internal/webhook/handler"
)

// WebhookService forwards package status events to external receivers
type WebhookService struct {
	config  *config.Configuration
	handler handler.Handler
	logger  *logger.Logger
}

func NewWebhookService(
	cfg *config.Configuration,
	h handler.Handler,
	l *logger.Logger,
) *WebhookService {
	return &WebhookService{
		config:  cfg,
		handler: h,
		logger:  l,
	}
}

// RegisterHandler subscribes the delivery handler when webhooks are enabled
func (s *WebhookService) RegisterHandler(router *pubsubRouter.Router) {
	if !s.config.Webhook.Enabled {
		s.logger.Info("webhook service disabled")
		return
	}

	s.handler.RegisterHandler(router)
	s.logger.Infow("webhook service registered",
		"endpoints", len(s.config.Webhook.Endpoints),
		"svix", s.config.Webhook.Svix.Enabled,
	)
}
