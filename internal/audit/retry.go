package audit

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/parcelbase/parcelbase/internal/domain/scanlog"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/pubsub"
	"github.com/parcelbase/parcelbase/internal/types"
)

// Record is a trailing audit write that failed after its status change was
// committed. Exactly one of History and Scan is set, matching Kind.
type Record struct {
	Kind    types.AuditRecordKind  `json:"kind"`
	History *statushistory.History `json:"history,omitempty"`
	Scan    *scanlog.Scan          `json:"scan,omitempty"`
}

func (r *Record) Validate() error {
	switch {
	case r.Kind == types.AuditRecordStatusHistory && r.History != nil:
		return nil
	case r.Kind == types.AuditRecordScan && r.Scan != nil:
		return nil
	}
	return ierr.NewErrorf("audit record of kind %q has no payload", r.Kind).
		Mark(ierr.ErrValidation)
}

// PackageID returns the package the record belongs to
func (r *Record) PackageID() string {
	if r.History != nil {
		return r.History.PackageID
	}
	if r.Scan != nil {
		return r.Scan.PackageID
	}
	return ""
}

// Enqueuer schedules failed audit writes for another attempt
type Enqueuer interface {
	Enqueue(ctx context.Context, record *Record) error
}

type retryPublisher struct {
	pubsub pubsub.Publisher
	logger *logger.Logger
}

func NewRetryPublisher(ps pubsub.PubSub, logger *logger.Logger) Enqueuer {
	return &retryPublisher{pubsub: ps, logger: logger}
}

func (p *retryPublisher) Enqueue(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return ierr.WithError(err).
			WithMessage("failed to marshal audit record").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("kind", string(record.Kind))
	msg.Metadata.Set("package_id", record.PackageID())
	if requestID := types.GetRequestID(ctx); requestID != "" {
		msg.Metadata.Set("request_id", requestID)
	}

	if err := p.pubsub.Publish(ctx, types.TopicAuditRetry, msg); err != nil {
		return ierr.WithError(err).
			WithMessage("failed to enqueue audit retry").
			Mark(ierr.ErrSystem)
	}

	p.logger.Infow("enqueued audit retry",
		"kind", record.Kind,
		"package_id", record.PackageID(),
		"message_uuid", msg.UUID,
	)
	return nil
}
