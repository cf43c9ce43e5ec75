package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/pubsub"
	"github.com/parcelbase/parcelbase/internal/types"
)

// StatusChangedEvent is published after a package status write commits
type StatusChangedEvent struct {
	EventID    string              `json:"event_id"`
	PackageID  string              `json:"package_id"`
	ShortCode  string              `json:"short_code"`
	FromStatus types.PackageStatus `json:"from_status"`
	ToStatus   types.PackageStatus `json:"to_status"`
	Location   *string             `json:"location,omitempty"`
	Mode       types.ScanMode      `json:"mode"`
	Forced     bool                `json:"forced"`
	ActorID    string              `json:"actor_id"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// EventPublisher publishes domain events
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, event *StatusChangedEvent) error
}

type eventPublisher struct {
	pubsub pubsub.Publisher
	logger *logger.Logger
}

func NewEventPublisher(ps pubsub.PubSub, logger *logger.Logger) EventPublisher {
	return &eventPublisher{pubsub: ps, logger: logger}
}

func (p *eventPublisher) PublishStatusChanged(ctx context.Context, event *StatusChangedEvent) error {
	if event.EventID == "" {
		event.EventID = watermill.NewULID()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.EventID, payload)
	msg.Metadata.Set("package_id", event.PackageID)
	msg.Metadata.Set("to_status", string(event.ToStatus))

	p.logger.Debugw("publishing status event",
		"event_id", event.EventID,
		"package_id", event.PackageID,
		"to_status", event.ToStatus,
	)
	return p.pubsub.Publish(ctx, types.TopicPackageStatusEvent, msg)
}
