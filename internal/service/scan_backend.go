package service

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/scanner"
)

type scanBackend struct {
	lookup LookupService
	status StatusService
	params ServiceParams
}

// NewScanBackend adapts the lookup and status services to the backend a
// scan session drives.
func NewScanBackend(params ServiceParams, lookup LookupService, status StatusService) scanner.Backend {
	return &scanBackend{lookup: lookup, status: status, params: params}
}

func (b *scanBackend) Lookup(ctx context.Context, code string) (*scanner.Resolution, error) {
	pkg, err := b.lookup.ResolveCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return b.lookup.Detail(ctx, pkg)
}

func (b *scanBackend) Reload(ctx context.Context, packageID string) (*scanner.Resolution, error) {
	pkg, err := b.params.PackageRepo.Get(ctx, packageID)
	if err != nil {
		return nil, err
	}
	return b.lookup.Detail(ctx, pkg)
}

func (b *scanBackend) ApplyStatus(ctx context.Context, req *scanner.StatusRequest) (*scanner.StatusResult, error) {
	change, err := b.status.ChangeStatus(ctx, req)
	if err != nil {
		return nil, err
	}
	return &scanner.StatusResult{
		Package:       change.Package,
		AuditComplete: change.AuditComplete,
		AuditFailures: change.AuditFailures,
	}, nil
}
