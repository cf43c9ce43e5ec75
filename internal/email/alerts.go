package email

import (
	"bytes"
	"context"
	"encoding/json"
	"text/template"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/publisher"
	"github.com/parcelbase/parcelbase/internal/pubsub"
	pubsubRouter "github.com/parcelbase/parcelbase/internal/pubsub/router"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
)

var (
	subjectTemplate = template.Must(template.New("subject").Parse(
		`[parcelbase] {{.ShortCode}} is now {{.ToStatus}}`))

	bodyTemplate = template.Must(template.New("body").Parse(`Package {{.ShortCode}} moved from {{.FromStatus}} to {{.ToStatus}}{{if .Forced}} (forced by an admin){{end}}.
{{if .Location}}
Location: {{.Location}}
{{end}}
When: {{.OccurredAt}}
Scan mode: {{.Mode}}

Track it at {{.TrackingURL}}
`))
)

type alertView struct {
	ShortCode   string
	FromStatus  types.PackageStatus
	ToStatus    types.PackageStatus
	Location    string
	Mode        types.ScanMode
	Forced      bool
	OccurredAt  string
	TrackingURL string
}

// AlertService emails operators when a package moves into a watched status
type AlertService struct {
	config *config.EmailAlertConfig
	origin string
	sender Sender
	pubSub pubsub.PubSub
	logger *logger.Logger
}

func NewAlertService(
	cfg *config.Configuration,
	client *Client,
	ps pubsub.PubSub,
	logger *logger.Logger,
) *AlertService {
	return newAlertService(cfg, client, ps, logger)
}

func newAlertService(cfg *config.Configuration, sender Sender, ps pubsub.PubSub, logger *logger.Logger) *AlertService {
	return &AlertService{
		config: &cfg.Alerts.Email,
		origin: cfg.Tracking.Origin,
		sender: sender,
		pubSub: ps,
		logger: logger,
	}
}

// RegisterHandler subscribes to status events when alerts are configured
func (s *AlertService) RegisterHandler(router *pubsubRouter.Router) {
	if !s.config.Enabled || len(s.config.Recipients) == 0 {
		s.logger.Info("email alerts disabled")
		return
	}

	router.AddNoPublishHandler(
		"email_alert_handler",
		types.TopicPackageStatusEvent,
		s.pubSub,
		s.ProcessMessage,
	)
	s.logger.Infow("email alerts registered",
		"recipients", len(s.config.Recipients),
		"statuses", s.config.Statuses,
	)
}

func (s *AlertService) ProcessMessage(msg *message.Message) error {
	toStatus := types.PackageStatus(msg.Metadata.Get("to_status"))
	if toStatus != "" && !s.watches(toStatus) {
		return nil
	}

	var event publisher.StatusChangedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil || event.ShortCode == "" {
		s.logger.Errorw("dropping malformed status event", "error", err, "message_uuid", msg.UUID)
		return nil
	}
	if !s.watches(event.ToStatus) {
		return nil
	}

	return s.send(msg.Context(), event)
}

func (s *AlertService) watches(status types.PackageStatus) bool {
	return lo.Contains(s.config.Statuses, status)
}

func (s *AlertService) send(ctx context.Context, event publisher.StatusChangedEvent) error {
	view := alertView{
		ShortCode:   event.ShortCode,
		FromStatus:  event.FromStatus,
		ToStatus:    event.ToStatus,
		Location:    lo.FromPtr(event.Location),
		Mode:        event.Mode,
		Forced:      event.Forced,
		OccurredAt:  event.OccurredAt.UTC().Format(time.RFC1123),
		TrackingURL: parcel.TrackingURL(s.origin, event.ShortCode),
	}

	var subject, body bytes.Buffer
	if err := subjectTemplate.Execute(&subject, view); err != nil {
		return ierr.WithError(err).WithHint("Could not render alert").Mark(ierr.ErrSystem)
	}
	if err := bodyTemplate.Execute(&body, view); err != nil {
		return ierr.WithError(err).WithHint("Could not render alert").Mark(ierr.ErrSystem)
	}

	id, err := s.sender.Send(ctx, Message{
		From:    s.config.FromAddress,
		To:      s.config.Recipients,
		Subject: subject.String(),
		Text:    body.String(),
	})
	if err != nil {
		s.logger.Errorw("failed to send status alert",
			"error", err,
			"package_id", event.PackageID,
			"to_status", event.ToStatus,
		)
		return err
	}

	s.logger.Infow("status alert sent",
		"message_id", id,
		"package_id", event.PackageID,
		"to_status", event.ToStatus,
	)
	return nil
}
