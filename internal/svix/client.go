package svix

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/parcelbase/parcelbase/internal/config"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	svix "github.com/svix/svix-webhooks/go"
	"github.com/svix/svix-webhooks/go/models"
)

// Client delivers webhook messages through Svix. All status events go to a
// single application named by webhook.svix.app_id.
type Client struct {
	client  *svix.Svix
	appUID  string
	enabled bool

	mu    sync.Mutex
	appID string
}

// NewClient returns a disabled client unless Svix delivery is configured
func NewClient(cfg *config.Configuration) (*Client, error) {
	svixCfg := cfg.Webhook.Svix
	if !cfg.Webhook.Enabled || !svixCfg.Enabled {
		return &Client{enabled: false}, nil
	}

	opts := &svix.SvixOptions{}
	if svixCfg.BaseURL != "" {
		serverURL, err := url.Parse(svixCfg.BaseURL)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Invalid Svix base URL").
				Mark(ierr.ErrValidation)
		}
		opts.ServerUrl = serverURL
	}

	client, err := svix.New(svixCfg.AuthToken, opts)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create Svix client").
			Mark(ierr.ErrSystem)
	}

	return &Client{
		client:  client,
		appUID:  svixCfg.AppID,
		enabled: true,
	}, nil
}

func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// application gets or creates the Svix application once per process
func (c *Client) application(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.appID != "" {
		return c.appID, nil
	}

	if app, err := c.client.Application.Get(ctx, c.appUID); err == nil {
		c.appID = app.Id
		return c.appID, nil
	}

	uid := c.appUID
	app, err := c.client.Application.Create(ctx, models.ApplicationIn{
		Name: uid,
		Uid:  &uid,
	}, &svix.ApplicationCreateOptions{})
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Svix application could not be created").
			Mark(ierr.ErrUnavailable)
	}
	c.appID = app.Id
	return c.appID, nil
}

// SendMessage sends one event. A disabled client drops the message.
func (c *Client) SendMessage(ctx context.Context, eventType string, payload json.RawMessage) error {
	if !c.Enabled() {
		return nil
	}

	appID, err := c.application(ctx)
	if err != nil {
		return err
	}

	var payloadMap map[string]interface{}
	if err := json.Unmarshal(payload, &payloadMap); err != nil {
		return ierr.WithError(err).
			WithHint("Webhook payload is not a JSON object").
			Mark(ierr.ErrValidation)
	}

	if _, err := c.client.Message.Create(ctx, appID, models.MessageIn{
		EventType: eventType,
		Payload:   payloadMap,
	}, &svix.MessageCreateOptions{}); err != nil {
		return ierr.WithError(err).
			WithHint("Svix rejected the webhook message").
			WithReportableDetails(map[string]any{"event_type": eventType}).
			Mark(ierr.ErrUnavailable)
	}
	return nil
}
