package statushistory

import (
	"context"
	"time"

	"github.com/parcelbase/parcelbase/internal/types"
)

// History is one append-only status transition of a package. FromStatus is
// nil for the row written when the package is created.
type History struct {
	ID         string               `db:"id" json:"id"`
	PackageID  string               `db:"package_id" json:"package_id"`
	FromStatus *types.PackageStatus `db:"from_status" json:"from_status"`
	ToStatus   types.PackageStatus  `db:"to_status" json:"to_status"`
	Location   *string              `db:"location" json:"location"`
	ActorID    string               `db:"actor_id" json:"actor_id"`
	Note       *string              `db:"note" json:"note"`
	CreatedAt  time.Time            `db:"created_at" json:"created_at"`
}

func New(ctx context.Context, packageID string, from *types.PackageStatus, to types.PackageStatus, location, note *string) *History {
	return &History{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_STATUS_HISTORY),
		PackageID:  packageID,
		FromStatus: from,
		ToStatus:   to,
		Location:   location,
		ActorID:    types.GetActorID(ctx),
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}
}
