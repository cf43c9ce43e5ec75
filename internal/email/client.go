package email

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/config"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/resend/resend-go/v2"
)

// Message is a plain text email to one or more recipients
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
}

// Sender delivers an email and returns the provider message id
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Client wraps the resend API. A client without an API key is disabled.
type Client struct {
	client  *resend.Client
	enabled bool
	replyTo string
}

func NewClient(cfg *config.Configuration) *Client {
	ec := cfg.Alerts.Email
	if !ec.Enabled || ec.APIKey == "" {
		return &Client{}
	}

	return &Client{
		client:  resend.NewClient(ec.APIKey),
		enabled: true,
		replyTo: ec.ReplyTo,
	}
}

func (c *Client) Enabled() bool {
	return c.enabled
}

func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	if !c.enabled {
		return "", ierr.NewError("email client is disabled").
			Mark(ierr.ErrInvalidOperation)
	}

	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Text,
	}
	if c.replyTo != "" {
		params.ReplyTo = c.replyTo
	}

	sent, err := c.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Email provider is unavailable").
			Mark(ierr.ErrUnavailable)
	}
	return sent.Id, nil
}
