package webhook

import (
	"github.com/parcelbase/parcelbase/internal/httpclient"
	"github.com/parcelbase/parcelbase/internal/svix"
	"github.com/parcelbase/parcelbase/internal/webhook/handler"
	"github.com/parcelbase/parcelbase/internal/webhook/payload"
	"go.uber.org/fx"
)

// Module provides all webhook-related dependencies
var Module = fx.Options(
	fx.Provide(
		httpclient.NewDefaultClient,
		svix.NewClient,
		payload.NewPayloadBuilderFactory,
		handler.NewHandler,
		NewWebhookService,
	),
)
