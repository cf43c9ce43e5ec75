package scanner

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	"github.com/parcelbase/parcelbase/internal/types"
)

// Resolution is a looked-up package with its most recent history rows
type Resolution struct {
	Package *parcel.Package          `json:"package"`
	History []*statushistory.History `json:"history"`
}

// StatusRequest asks for a conditional status write. ExpectedStatus is the
// status the operator saw when the package was looked up.
type StatusRequest struct {
	PackageID      string
	ExpectedStatus types.PackageStatus
	ToStatus       types.PackageStatus
	Location       *string
	Note           *string
	RawPayload     string
	Format         string
	Mode           types.ScanMode
	Force          bool
}

// StatusResult reports a committed status change. AuditComplete is false
// when the history or scan row could not be written.
type StatusResult struct {
	Package       *parcel.Package `json:"package"`
	AuditComplete bool            `json:"audit_complete"`
	AuditFailures []string        `json:"audit_failures,omitempty"`
}

// Backend resolves codes and writes statuses on behalf of a session.
// Lookup returns ErrNotFound when no package matches and ErrUnavailable
// when the backend could not be reached.
type Backend interface {
	Lookup(ctx context.Context, code string) (*Resolution, error)
	Reload(ctx context.Context, packageID string) (*Resolution, error)
	ApplyStatus(ctx context.Context, req *StatusRequest) (*StatusResult, error)
}
