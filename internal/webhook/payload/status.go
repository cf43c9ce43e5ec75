package payload

import (
	"context"
	"encoding/json"
	"time"

	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/publisher"
	"github.com/parcelbase/parcelbase/internal/types"
)

// StatusChangedData is the public part of a status change. Actors are left
// out, same as on the tracking page.
type StatusChangedData struct {
	PackageID   string              `json:"package_id"`
	ShortCode   string              `json:"short_code"`
	TrackingURL string              `json:"tracking_url"`
	FromStatus  types.PackageStatus `json:"from_status"`
	ToStatus    types.PackageStatus `json:"to_status"`
	Location    *string             `json:"location,omitempty"`
	Mode        types.ScanMode      `json:"mode"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

type statusChangedPayloadBuilder struct {
	origin string
}

func NewStatusChangedPayloadBuilder(origin string) PayloadBuilder {
	return &statusChangedPayloadBuilder{origin: origin}
}

func (b *statusChangedPayloadBuilder) BuildPayload(_ context.Context, eventType string, data json.RawMessage) (json.RawMessage, error) {
	var event publisher.StatusChangedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Malformed status event").
			Mark(ierr.ErrValidation)
	}
	if event.PackageID == "" || event.ToStatus == "" {
		return nil, ierr.NewError("status event without package or status").
			WithHint("Malformed status event").
			WithReportableDetails(map[string]any{"event_id": event.EventID}).
			Mark(ierr.ErrValidation)
	}

	return json.Marshal(Envelope{
		EventID:   event.EventID,
		EventType: eventType,
		Timestamp: event.OccurredAt.UTC().Format(time.RFC3339),
		Data: StatusChangedData{
			PackageID:   event.PackageID,
			ShortCode:   event.ShortCode,
			TrackingURL: parcel.TrackingURL(b.origin, event.ShortCode),
			FromStatus:  event.FromStatus,
			ToStatus:    event.ToStatus,
			Location:    event.Location,
			Mode:        event.Mode,
			OccurredAt:  event.OccurredAt,
		},
	})
}
