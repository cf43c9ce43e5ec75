package dto

import (
	"time"

	"github.com/parcelbase/parcelbase/internal/types"
)

// TrackingResponse is the public view of a package. It carries no actors
// or internal notes.
type TrackingResponse struct {
	ShortCode           string              `json:"short_code"`
	Status              types.PackageStatus `json:"status"`
	CurrentLocation     *string             `json:"current_location,omitempty"`
	Origin              *string             `json:"origin,omitempty"`
	DestinationBranchID *string             `json:"destination_branch_id,omitempty"`
	UpdatedAt           time.Time           `json:"updated_at"`
	Events              []TrackingEvent     `json:"events"`
}

type TrackingEvent struct {
	Status   types.PackageStatus `json:"status"`
	Location *string             `json:"location,omitempty"`
	At       time.Time           `json:"at"`
}
