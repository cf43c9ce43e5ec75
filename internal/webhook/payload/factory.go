package payload

import (
	"github.com/parcelbase/parcelbase/internal/config"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/types"
)

// PayloadBuilderFactory interface for getting event-specific payload builders
type PayloadBuilderFactory interface {
	GetBuilder(eventType string) (PayloadBuilder, error)
}

type payloadBuilderFactory struct {
	builders map[string]func() PayloadBuilder
}

// NewPayloadBuilderFactory creates a new factory with registered builders
func NewPayloadBuilderFactory(cfg *config.Configuration) PayloadBuilderFactory {
	f := &payloadBuilderFactory{
		builders: make(map[string]func() PayloadBuilder),
	}

	f.builders[types.TopicPackageStatusEvent] = func() PayloadBuilder {
		return NewStatusChangedPayloadBuilder(cfg.Tracking.Origin)
	}

	return f
}

func (f *payloadBuilderFactory) GetBuilder(eventType string) (PayloadBuilder, error) {
	builder, ok := f.builders[eventType]
	if !ok {
		return nil, ierr.NewErrorf("no payload builder for event %s", eventType).
			WithHint("Unsupported webhook event").
			Mark(ierr.ErrInvalidOperation)
	}
	return builder(), nil
}
