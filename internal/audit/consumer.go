package audit

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/parcelbase/parcelbase/internal/domain/scanlog"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/pubsub"
	"github.com/parcelbase/parcelbase/internal/pubsub/router"
	"github.com/parcelbase/parcelbase/internal/types"
)

// Consumer replays audit records from the retry topic. The repository
// inserts are idempotent on the row id, so a record delivered twice is
// written once.
type Consumer struct {
	history    statushistory.Repository
	scans      scanlog.Repository
	subscriber pubsub.Subscriber
	logger     *logger.Logger
}

func NewConsumer(
	history statushistory.Repository,
	scans scanlog.Repository,
	ps pubsub.PubSub,
	logger *logger.Logger,
) *Consumer {
	return &Consumer{
		history:    history,
		scans:      scans,
		subscriber: ps,
		logger:     logger,
	}
}

// RegisterHandler subscribes the consumer to the retry topic
func (c *Consumer) RegisterHandler(r *router.Router) {
	r.AddNoPublishHandler("audit_retry_handler", types.TopicAuditRetry, c.subscriber, c.Handle)
}

func (c *Consumer) Handle(msg *message.Message) error {
	var record Record
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		return ierr.WithError(err).
			WithMessage("malformed audit retry payload").
			Mark(ierr.ErrValidation)
	}
	if err := record.Validate(); err != nil {
		return err
	}

	ctx := msg.Context()
	var err error
	switch record.Kind {
	case types.AuditRecordStatusHistory:
		err = c.history.Create(ctx, record.History)
	case types.AuditRecordScan:
		err = c.scans.Create(ctx, record.Scan)
	}
	if err != nil {
		return err
	}

	c.logger.Infow("replayed audit record",
		"kind", record.Kind,
		"package_id", record.PackageID(),
		"message_uuid", msg.UUID,
	)
	return nil
}
