package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/scanner"
	"github.com/parcelbase/parcelbase/internal/types"
)

// LookupService resolves scanned codes to packages
type LookupService interface {
	// Resolve extracts the identifier from raw decoded text and resolves it
	Resolve(ctx context.Context, raw string) (string, *scanner.Resolution, error)
	// ResolveCode tries the short code first and the primary key second
	ResolveCode(ctx context.Context, code string) (*parcel.Package, error)
	// Detail loads the most recent history rows for pkg
	Detail(ctx context.Context, pkg *parcel.Package) (*scanner.Resolution, error)
}

type lookupService struct {
	ServiceParams
}

func NewLookupService(params ServiceParams) LookupService {
	return &lookupService{ServiceParams: params}
}

func (s *lookupService) Resolve(ctx context.Context, raw string) (string, *scanner.Resolution, error) {
	code, err := scanner.ExtractIdentifier(raw, s.Config.Scanner.MinCodeLength, s.Config.Scanner.NoiseLiterals)
	if err != nil {
		return "", nil, ierr.WithError(err).
			WithHint("The scanned text is not a package code").
			Mark(ierr.ErrValidation)
	}

	pkg, err := s.ResolveCode(ctx, code)
	if err != nil {
		return code, nil, err
	}

	res, err := s.Detail(ctx, pkg)
	return code, res, err
}

func (s *lookupService) ResolveCode(ctx context.Context, code string) (*parcel.Package, error) {
	var pkg *parcel.Package
	err := s.withRetry(ctx, "get_by_short_code", func() error {
		var err error
		pkg, err = s.PackageRepo.GetByShortCode(ctx, code)
		return err
	})
	if err == nil {
		return pkg, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	err = s.withRetry(ctx, "get_by_id", func() error {
		var err error
		pkg, err = s.PackageRepo.Get(ctx, code)
		return err
	})
	if err == nil {
		return pkg, nil
	}
	if ierr.IsNotFound(err) {
		return nil, ierr.NewErrorf("no package matches code %s", code).
			WithHintf("No package found for %s", code).
			WithReportableDetails(map[string]any{"code": code}).
			Mark(ierr.ErrNotFound)
	}
	return nil, err
}

func (s *lookupService) Detail(ctx context.Context, pkg *parcel.Package) (*scanner.Resolution, error) {
	history, err := s.HistoryRepo.ListByPackage(ctx, types.NewHistoryFilter(pkg.ID, s.Config.Scanner.HistoryLimit))
	if err != nil {
		// the package itself resolved; show it without history
		s.Logger.Warnw("failed to load package history",
			"package_id", pkg.ID,
			"error", err,
		)
		history = []*statushistory.History{}
	}
	return &scanner.Resolution{Package: pkg, History: history}, nil
}

// withRetry retries fn while the backend reports itself unavailable. This
// is the only read in the scan path that is retried automatically.
func (s *lookupService) withRetry(ctx context.Context, operation string, fn func() error) error {
	cfg := s.Config.Scanner.LookupRetry

	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	b.MaxElapsedTime = cfg.MaxElapsedTime

	attempts := 0
	err := backoff.RetryNotify(
		func() error {
			attempts++
			err := fn()
			if err != nil && !ierr.IsUnavailable(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx),
		func(err error, next time.Duration) {
			s.Logger.Warnw("lookup failed, retrying",
				"operation", operation,
				"attempt", attempts,
				"next_retry_in", next,
				"error", err,
			)
		},
	)
	if err != nil && ierr.IsUnavailable(err) {
		s.Sentry.CaptureExceptionWithTags(ctx, err, map[string]string{"operation": "lookup." + operation})
		return ierr.WithError(err).
			WithHint("The package database could not be reached. Scan again to retry.").
			WithReportableDetails(map[string]any{"attempts": attempts}).
			Mark(ierr.ErrUnavailable)
	}
	return err
}
