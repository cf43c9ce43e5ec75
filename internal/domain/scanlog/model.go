package scanlog

import (
	"context"
	"time"

	"github.com/parcelbase/parcelbase/internal/types"
)

// Scan records the raw payload a package was resolved from
type Scan struct {
	ID         string         `db:"id" json:"id"`
	PackageID  string         `db:"package_id" json:"package_id"`
	RawPayload string         `db:"raw_payload" json:"raw_payload"`
	Format     *string        `db:"format" json:"format"`
	Mode       types.ScanMode `db:"mode" json:"mode"`
	ActorID    string         `db:"actor_id" json:"actor_id"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

func New(ctx context.Context, packageID, raw string, format *string, mode types.ScanMode) *Scan {
	return &Scan{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SCAN),
		PackageID:  packageID,
		RawPayload: raw,
		Format:     format,
		Mode:       mode,
		ActorID:    types.GetActorID(ctx),
		CreatedAt:  time.Now().UTC(),
	}
}
