package service

import (
	"context"
	"strings"
	"time"

	"github.com/parcelbase/parcelbase/internal/audit"
	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	"github.com/parcelbase/parcelbase/internal/domain/scanlog"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/publisher"
	"github.com/parcelbase/parcelbase/internal/scanner"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
)

// StatusChange is the outcome of a committed status write. History is nil
// when the history row could not be written.
type StatusChange struct {
	Package       *parcel.Package
	History       *statushistory.History
	AuditComplete bool
	AuditFailures []string
}

// StatusService performs status transitions for both scan sessions and the
// package screen.
type StatusService interface {
	ChangeStatus(ctx context.Context, req *scanner.StatusRequest) (*StatusChange, error)
}

type statusService struct {
	ServiceParams
}

func NewStatusService(params ServiceParams) StatusService {
	return &statusService{ServiceParams: params}
}

func (s *statusService) ChangeStatus(ctx context.Context, req *scanner.StatusRequest) (*StatusChange, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}

	mode := lo.Ternary(req.Mode == "", types.ScanModeManual, req.Mode)

	pkg, err := s.PackageRepo.UpdateStatus(ctx, &parcel.StatusUpdate{
		ID:        req.PackageID,
		From:      req.ExpectedStatus,
		To:        req.ToStatus,
		Location:  req.Location,
		UpdatedBy: types.GetActorID(ctx),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		if ierr.IsVersionConflict(err) || ierr.IsNotFound(err) {
			return nil, err
		}
		s.Logger.Errorw("failed to write package status",
			"package_id", req.PackageID,
			"from_status", req.ExpectedStatus,
			"to_status", req.ToStatus,
			"error", err,
		)
		mark := ierr.ErrDatabase
		if ierr.IsUnavailable(err) {
			mark = ierr.ErrUnavailable
		}
		return nil, ierr.WithError(err).
			WithHintf("Could not change status to %s", req.ToStatus).
			Mark(mark)
	}

	change := &StatusChange{Package: pkg, AuditComplete: true}

	from := req.ExpectedStatus
	history := statushistory.New(ctx, pkg.ID, &from, req.ToStatus, req.Location, historyNote(req))
	if err := s.HistoryRepo.Create(ctx, history); err != nil {
		s.auditFailed(ctx, change, &audit.Record{Kind: types.AuditRecordStatusHistory, History: history}, err)
	} else {
		change.History = history
	}

	if strings.TrimSpace(req.RawPayload) != "" {
		scan := scanlog.New(ctx, pkg.ID, req.RawPayload, lo.EmptyableToPtr(req.Format), mode)
		if err := s.ScanRepo.Create(ctx, scan); err != nil {
			s.auditFailed(ctx, change, &audit.Record{Kind: types.AuditRecordScan, Scan: scan}, err)
		}
	}

	event := &publisher.StatusChangedEvent{
		PackageID:  pkg.ID,
		ShortCode:  pkg.ShortCode,
		FromStatus: req.ExpectedStatus,
		ToStatus:   req.ToStatus,
		Location:   req.Location,
		Mode:       mode,
		Forced:     req.Force,
		ActorID:    types.GetActorID(ctx),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.EventPublisher.PublishStatusChanged(ctx, event); err != nil {
		s.Logger.Warnw("failed to publish status event",
			"package_id", pkg.ID,
			"error", err,
		)
	}

	s.Logger.Infow("package status changed",
		"package_id", pkg.ID,
		"short_code", pkg.ShortCode,
		"from_status", req.ExpectedStatus,
		"to_status", req.ToStatus,
		"mode", mode,
		"forced", req.Force,
		"audit_complete", change.AuditComplete,
	)
	return change, nil
}

func (s *statusService) validate(ctx context.Context, req *scanner.StatusRequest) error {
	if req.PackageID == "" {
		return ierr.NewError("package id is required").
			WithHint("Select a package first").
			Mark(ierr.ErrValidation)
	}
	if err := req.ExpectedStatus.Validate(); err != nil {
		return err
	}
	if err := req.ToStatus.Validate(); err != nil {
		return err
	}

	if !req.Force {
		return req.ExpectedStatus.ValidateTransition(req.ToStatus)
	}
	if !types.IsAdmin(ctx) {
		return ierr.NewError("forced status change requires admin").
			WithHint("Only admins can override the status order").
			WithReportableDetails(map[string]any{
				"from_status": req.ExpectedStatus,
				"to_status":   req.ToStatus,
			}).
			Mark(ierr.ErrPermissionDenied)
	}
	if req.ExpectedStatus == req.ToStatus {
		return ierr.NewErrorf("package is already %s", req.ToStatus).
			WithHintf("Package is already %s", req.ToStatus).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

// auditFailed records a failed trailing write on change and queues it for
// another attempt. The status change itself stays committed.
func (s *statusService) auditFailed(ctx context.Context, change *StatusChange, record *audit.Record, cause error) {
	change.AuditComplete = false
	change.AuditFailures = append(change.AuditFailures, string(record.Kind))

	s.Logger.Errorw("audit write failed after status change",
		"package_id", record.PackageID(),
		"kind", record.Kind,
		"error", cause,
	)
	s.Sentry.CaptureExceptionWithTags(ctx, cause, map[string]string{
		"operation":  "status.audit",
		"kind":       string(record.Kind),
		"package_id": record.PackageID(),
	})

	if err := s.AuditQueue.Enqueue(ctx, record); err != nil {
		s.Logger.Errorw("failed to enqueue audit retry",
			"package_id", record.PackageID(),
			"kind", record.Kind,
			"error", err,
		)
	}
}

func historyNote(req *scanner.StatusRequest) *string {
	note := strings.TrimSpace(lo.FromPtr(req.Note))
	if req.Force {
		note = strings.TrimSpace("forced: " + note)
	}
	return lo.EmptyableToPtr(note)
}
