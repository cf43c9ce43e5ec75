package service

import (
	"testing"

	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/testutil"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type TrackingServiceSuite struct {
	testutil.BaseServiceTestSuite
	service TrackingService
	status  StatusService
}

func TestTrackingService(t *testing.T) {
	suite.Run(t, new(TrackingServiceSuite))
}

func (s *TrackingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := testParams(&s.BaseServiceTestSuite)
	s.service = NewTrackingService(params)
	s.status = NewStatusService(params)
}

func (s *TrackingServiceSuite) TestTimelineIsOldestFirst() {
	pkg := s.CreatePackage("PKAAAAAAA", types.PackageStatusHandedOver)
	req := statusRequest(pkg.ID, types.PackageStatusHandedOver, types.PackageStatusInTransit)
	req.Location = lo.ToPtr("Hub North")
	_, err := s.status.ChangeStatus(s.GetContext(), req)
	s.Require().NoError(err)

	resp, err := s.service.Track(s.GetContext(), "PKAAAAAAA")
	s.Require().NoError(err)
	s.Equal(types.PackageStatusInTransit, resp.Status)
	s.Equal("Hub North", lo.FromPtr(resp.CurrentLocation))
	s.Require().Len(resp.Events, 2)
	s.Equal(types.PackageStatusHandedOver, resp.Events[0].Status)
	s.Equal(types.PackageStatusInTransit, resp.Events[1].Status)
}

func (s *TrackingServiceSuite) TestUnknownCode() {
	_, err := s.service.Track(s.GetContext(), "PKNOPE")
	s.True(ierr.IsNotFound(err))
}
