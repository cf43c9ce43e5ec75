package service

import (
	"testing"

	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/testutil"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/stretchr/testify/suite"
)

type LookupServiceSuite struct {
	testutil.BaseServiceTestSuite
	service LookupService
}

func TestLookupService(t *testing.T) {
	suite.Run(t, new(LookupServiceSuite))
}

func (s *LookupServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewLookupService(testParams(&s.BaseServiceTestSuite))
}

func (s *LookupServiceSuite) TestResolvePayloadFormats() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusPrinted)

	testCases := []struct {
		name string
		raw  string
	}{
		{name: "plain_short_code", raw: "PKAB12CD34"},
		{name: "padded_short_code", raw: "  PKAB12CD34\n"},
		{name: "json_short_code", raw: `{"short_code":"PKAB12CD34"}`},
		{name: "json_id", raw: `{"id":"` + pkg.ID + `"}`},
		{name: "tracking_url", raw: "https://parcels.test/track/PKAB12CD34"},
		{name: "tracking_url_with_query", raw: "https://parcels.test/track/PKAB12CD34?ref=label"},
		{name: "primary_key", raw: pkg.ID},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, res, err := s.service.Resolve(s.GetContext(), tc.raw)
			s.Require().NoError(err)
			s.Equal(pkg.ID, res.Package.ID)
			s.Equal(types.PackageStatusPrinted, res.Package.Status)
			s.Len(res.History, 1)
		})
	}
}

func (s *LookupServiceSuite) TestShortCodeTriedBeforePrimaryKey() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusCreated)
	store := s.GetStores().PackageRepo

	_, err := s.service.ResolveCode(s.GetContext(), "PKAB12CD34")
	s.Require().NoError(err)
	s.Equal([]string{"get_by_short_code"}, store.Calls())

	store.Reset()
	_, err = s.service.ResolveCode(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Equal([]string{"get_by_short_code", "get"}, store.Calls())
}

func (s *LookupServiceSuite) TestShortCodeIsCaseSensitive() {
	s.CreatePackage("PKAB12CD34", types.PackageStatusCreated)

	_, err := s.service.ResolveCode(s.GetContext(), "pkab12cd34")
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *LookupServiceSuite) TestNotFound() {
	code, res, err := s.service.Resolve(s.GetContext(), "https://parcels.test/track/NOPE123")
	s.Require().Error(err)
	s.Nil(res)
	s.Equal("NOPE123", code)
	s.True(ierr.IsNotFound(err))
	s.Equal("No package found for NOPE123", ierr.Hint(err))
}

func (s *LookupServiceSuite) TestRejectsNoiseBeforeQuerying() {
	for _, raw := range []string{"", "  ", "ab", "null", "undefined", "NaN", "[object Object]"} {
		_, _, err := s.service.Resolve(s.GetContext(), raw)
		s.Require().Error(err, raw)
		s.True(ierr.IsValidation(err), raw)
	}
	s.Empty(s.GetStores().PackageRepo.Calls())
}

func (s *LookupServiceSuite) TestTransientFailureIsRetried() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusCreated)
	store := s.GetStores().PackageRepo
	store.FailNext("get_by_short_code", testutil.ErrBackendDown())
	store.FailNext("get_by_short_code", testutil.ErrBackendDown())

	got, err := s.service.ResolveCode(s.GetContext(), "PKAB12CD34")
	s.Require().NoError(err)
	s.Equal(pkg.ID, got.ID)
	s.Len(store.Calls(), 3)
}

func (s *LookupServiceSuite) TestExhaustedRetriesAreUnavailable() {
	s.CreatePackage("PKAB12CD34", types.PackageStatusCreated)
	store := s.GetStores().PackageRepo
	store.FailAlways("get_by_short_code", testutil.ErrBackendDown())

	_, err := s.service.ResolveCode(s.GetContext(), "PKAB12CD34")
	s.Require().Error(err)
	s.True(ierr.IsUnavailable(err))
	s.False(ierr.IsNotFound(err))
	s.Equal("The package database could not be reached. Scan again to retry.", ierr.Hint(err))
	// one attempt plus the configured retries
	s.Len(store.Calls(), int(s.GetConfig().Scanner.LookupRetry.MaxRetries)+1)
}

func (s *LookupServiceSuite) TestHistoryFailureDoesNotHidePackage() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusCreated)
	s.GetStores().HistoryRepo.FailNext("list", testutil.ErrWriteFailed())

	_, res, err := s.service.Resolve(s.GetContext(), "PKAB12CD34")
	s.Require().NoError(err)
	s.Equal(pkg.ID, res.Package.ID)
	s.Empty(res.History)
}

func (s *LookupServiceSuite) TestDetailLimitsHistory() {
	pkg := s.CreatePackage("PKAB12CD34", types.PackageStatusCreated)
	status := NewStatusService(testParams(&s.BaseServiceTestSuite))
	ctx := s.GetContext()

	path := []types.PackageStatus{
		types.PackageStatusQueuedForPrint,
		types.PackageStatusPrinted,
		types.PackageStatusQueuedForPrint,
		types.PackageStatusPrinted,
		types.PackageStatusHandedOver,
		types.PackageStatusInTransit,
	}
	from := pkg.Status
	for _, to := range path {
		_, err := status.ChangeStatus(ctx, statusRequest(pkg.ID, from, to))
		s.Require().NoError(err)
		from = to
	}

	res, err := s.service.Detail(ctx, pkg)
	s.Require().NoError(err)
	s.Len(res.History, s.GetConfig().Scanner.HistoryLimit)
	s.Equal(types.PackageStatusInTransit, res.History[0].ToStatus)
}
