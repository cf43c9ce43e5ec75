package parcel

import (
	"fmt"
	"strings"
	"time"

	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Package is a shipment record. It is keyed by a UUID and scanned by its
// short code.
type Package struct {
	ID                  string              `db:"id" json:"id"`
	ShortCode           string              `db:"short_code" json:"short_code"`
	ContentsNote        string              `db:"contents_note" json:"contents_note"`
	Status              types.PackageStatus `db:"status" json:"status"`
	CurrentLocation     *string             `db:"current_location" json:"current_location"`
	Origin              *string             `db:"origin" json:"origin"`
	DestinationBranchID *string             `db:"destination_branch_id" json:"destination_branch_id"`
	Version             int                 `db:"version" json:"version"`
	types.BaseModel
}

// StatusUpdate is a conditional status write. It only applies while the
// stored status still equals From.
type StatusUpdate struct {
	ID        string
	From      types.PackageStatus
	To        types.PackageStatus
	Location  *string
	UpdatedBy string
	UpdatedAt time.Time
}

// ContentLine is one item line of the contents note
type ContentLine struct {
	Name     string
	Quantity decimal.Decimal
}

// BuildContentsNote renders the free-text contents note printed on labels,
// e.g. "To: Jane Doe; Items: Box x2, Tape x1".
func BuildContentsNote(recipient string, lines []ContentLine, note string) string {
	parts := make([]string, 0, 3)
	if recipient = strings.TrimSpace(recipient); recipient != "" {
		parts = append(parts, "To: "+recipient)
	}
	if len(lines) > 0 {
		items := lo.Map(lines, func(l ContentLine, _ int) string {
			return fmt.Sprintf("%s x%s", l.Name, l.Quantity.String())
		})
		parts = append(parts, "Items: "+strings.Join(items, ", "))
	}
	if note = strings.TrimSpace(note); note != "" {
		parts = append(parts, "Note: "+note)
	}
	return strings.Join(parts, "; ")
}

// TrackingURL returns {origin}/track/{shortCode}.
func TrackingURL(origin, shortCode string) string {
	return strings.TrimRight(origin, "/") + "/track/" + shortCode
}
