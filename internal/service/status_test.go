package service

import (
	"net/http"
	"testing"

	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/scanner"
	"github.com/parcelbase/parcelbase/internal/testutil"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type StatusServiceSuite struct {
	testutil.BaseServiceTestSuite
	service StatusService
}

func TestStatusService(t *testing.T) {
	suite.Run(t, new(StatusServiceSuite))
}

func (s *StatusServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewStatusService(testParams(&s.BaseServiceTestSuite))
}

func statusRequest(id string, from, to types.PackageStatus) *scanner.StatusRequest {
	return &scanner.StatusRequest{PackageID: id, ExpectedStatus: from, ToStatus: to}
}

func (s *StatusServiceSuite) TestChangeStatusWritesAllRecords() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusPrinted)
	ctx := s.GetContext()

	change, err := s.service.ChangeStatus(ctx, &scanner.StatusRequest{
		PackageID:      pkg.ID,
		ExpectedStatus: types.PackageStatusPrinted,
		ToStatus:       types.PackageStatusHandedOver,
		Location:       lo.ToPtr("Dock 3"),
		Note:           lo.ToPtr("picked up"),
		RawPayload:     `{"short_code":"PKAB12CD34"}`,
		Format:         "qr_code",
		Mode:           types.ScanModeSingle,
	})
	s.Require().NoError(err)
	s.True(change.AuditComplete)
	s.Empty(change.AuditFailures)

	s.Equal(types.PackageStatusHandedOver, change.Package.Status)
	s.Equal("Dock 3", lo.FromPtr(change.Package.CurrentLocation))
	s.Equal(pkg.Version+1, change.Package.Version)
	s.Equal(testutil.TestOperatorID, change.Package.UpdatedBy)

	history, err := s.GetStores().HistoryRepo.ListByPackage(ctx, types.NewHistoryFilter(pkg.ID, 10))
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(types.PackageStatusPrinted, lo.FromPtr(history[0].FromStatus))
	s.Equal(types.PackageStatusHandedOver, history[0].ToStatus)
	s.Equal("picked up", lo.FromPtr(history[0].Note))
	s.Equal(testutil.TestOperatorID, history[0].ActorID)

	scans, err := s.GetStores().ScanRepo.ListByPackage(ctx, types.NewHistoryFilter(pkg.ID, 10))
	s.Require().NoError(err)
	s.Require().Len(scans, 1)
	s.Equal(`{"short_code":"PKAB12CD34"}`, scans[0].RawPayload)
	s.Equal("qr_code", lo.FromPtr(scans[0].Format))
	s.Equal(types.ScanModeSingle, scans[0].Mode)

	events := s.GetPublisher().Events()
	s.Require().Len(events, 1)
	s.Equal(pkg.ID, events[0].PackageID)
	s.Equal(types.PackageStatusHandedOver, events[0].ToStatus)
	s.False(events[0].Forced)
}

func (s *StatusServiceSuite) TestManualChangeWritesNoScan() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusCreated)

	_, err := s.service.ChangeStatus(s.GetContext(), statusRequest(pkg.ID, pkg.Status, types.PackageStatusPrinted))
	s.Require().NoError(err)

	scans, err := s.GetStores().ScanRepo.ListByPackage(s.GetContext(), types.NewHistoryFilter(pkg.ID, 10))
	s.Require().NoError(err)
	s.Empty(scans)
	s.Equal(types.ScanModeManual, s.GetPublisher().Events()[0].Mode)
}

func (s *StatusServiceSuite) TestRejectedTransitions() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusDelivered)

	testCases := []struct {
		name  string
		req   *scanner.StatusRequest
		check func(error) bool
	}{
		{
			name:  "out_of_order",
			req:   statusRequest(pkg.ID, types.PackageStatusDelivered, types.PackageStatusInTransit),
			check: ierr.IsInvalidOperation,
		},
		{
			name:  "same_status",
			req:   statusRequest(pkg.ID, types.PackageStatusDelivered, types.PackageStatusDelivered),
			check: ierr.IsInvalidOperation,
		},
		{
			name:  "unknown_status",
			req:   statusRequest(pkg.ID, types.PackageStatusDelivered, "lost"),
			check: ierr.IsValidation,
		},
		{
			name:  "missing_package",
			req:   statusRequest("", types.PackageStatusDelivered, types.PackageStatusReturned),
			check: ierr.IsValidation,
		},
		{
			name: "force_without_admin",
			req: &scanner.StatusRequest{
				PackageID:      pkg.ID,
				ExpectedStatus: types.PackageStatusDelivered,
				ToStatus:       types.PackageStatusInTransit,
				Force:          true,
			},
			check: ierr.IsPermissionDenied,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.service.ChangeStatus(s.GetContext(), tc.req)
			s.Require().Error(err)
			s.True(tc.check(err), err.Error())
		})
	}

	current, err := s.GetStores().PackageRepo.Get(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Equal(types.PackageStatusDelivered, current.Status)
	s.Empty(s.GetPublisher().Events())
}

func (s *StatusServiceSuite) TestAdminForceIsNoted() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusDelivered)

	change, err := s.service.ChangeStatus(s.GetAdminContext(), &scanner.StatusRequest{
		PackageID:      pkg.ID,
		ExpectedStatus: types.PackageStatusDelivered,
		ToStatus:       types.PackageStatusInTransit,
		Note:           lo.ToPtr("scanned at wrong dock"),
		Force:          true,
	})
	s.Require().NoError(err)
	s.Equal(types.PackageStatusInTransit, change.Package.Status)
	s.Equal("forced: scanned at wrong dock", lo.FromPtr(change.History.Note))
	s.Equal(testutil.TestAdminID, change.History.ActorID)
	s.True(s.GetPublisher().Events()[0].Forced)
}

func (s *StatusServiceSuite) TestVersionConflict() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusPrinted)
	// another operator moves it first
	s.GetStores().PackageRepo.SetStatus(s.GetContext(), pkg.ID, types.PackageStatusHandedOver)

	_, err := s.service.ChangeStatus(s.GetContext(), statusRequest(pkg.ID, types.PackageStatusPrinted, types.PackageStatusCanceled))
	s.Require().Error(err)
	s.True(ierr.IsVersionConflict(err))

	current, err := s.GetStores().PackageRepo.Get(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Equal(types.PackageStatusHandedOver, current.Status)

	history, err := s.GetStores().HistoryRepo.ListByPackage(s.GetContext(), types.NewHistoryFilter(pkg.ID, 10))
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *StatusServiceSuite) TestStatusWriteFailureIsFatal() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusPrinted)
	s.GetStores().PackageRepo.FailNext("update_status", testutil.ErrWriteFailed())

	_, err := s.service.ChangeStatus(s.GetContext(), statusRequest(pkg.ID, pkg.Status, types.PackageStatusHandedOver))
	s.Require().Error(err)
	s.True(ierr.IsDatabase(err))
	s.Equal("Could not change status to handed_over", ierr.Hint(err))
	s.Empty(s.GetAuditQueue().Records())
	s.Empty(s.GetStores().HistoryRepo.Calls())
}

func (s *StatusServiceSuite) TestStatusWriteUnavailableKeepsCategory() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusPrinted)
	s.GetStores().PackageRepo.FailNext("update_status", testutil.ErrBackendDown())

	_, err := s.service.ChangeStatus(s.GetContext(), statusRequest(pkg.ID, pkg.Status, types.PackageStatusHandedOver))
	s.Require().Error(err)
	s.True(ierr.IsUnavailable(err))
	s.Equal(http.StatusServiceUnavailable, ierr.HTTPStatusFromErr(err))
	s.Equal("Could not change status to handed_over", ierr.Hint(err))
}

func (s *StatusServiceSuite) TestAuditFailuresAreReportedAndQueued() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusPrinted)
	s.GetStores().HistoryRepo.FailNext("create", testutil.ErrWriteFailed())
	s.GetStores().ScanRepo.FailNext("create", testutil.ErrWriteFailed())

	req := statusRequest(pkg.ID, pkg.Status, types.PackageStatusHandedOver)
	req.RawPayload = "PKAB12CD34"
	req.Mode = types.ScanModeBulk

	change, err := s.service.ChangeStatus(s.GetContext(), req)
	s.Require().NoError(err)
	s.Equal(types.PackageStatusHandedOver, change.Package.Status)
	s.False(change.AuditComplete)
	s.Equal([]string{string(types.AuditRecordStatusHistory), string(types.AuditRecordScan)}, change.AuditFailures)
	s.Nil(change.History)

	records := s.GetAuditQueue().Records()
	s.Require().Len(records, 2)
	s.Equal(types.AuditRecordStatusHistory, records[0].Kind)
	s.Equal(types.PackageStatusPrinted, lo.FromPtr(records[0].History.FromStatus))
	s.Equal(types.AuditRecordScan, records[1].Kind)
	s.Equal("PKAB12CD34", records[1].Scan.RawPayload)
	s.Equal(types.ScanModeBulk, records[1].Scan.Mode)
}

func (s *StatusServiceSuite) TestEnqueueFailureStillReturnsChange() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusPrinted)
	s.GetStores().HistoryRepo.FailNext("create", testutil.ErrWriteFailed())
	s.GetAuditQueue().Fail(testutil.ErrBackendDown())

	change, err := s.service.ChangeStatus(s.GetContext(), statusRequest(pkg.ID, pkg.Status, types.PackageStatusHandedOver))
	s.Require().NoError(err)
	s.False(change.AuditComplete)
}
