package service

import (
	"github.com/parcelbase/parcelbase/internal/testutil"
)

// testParams wires the suite's in-memory stores into ServiceParams
func testParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		s.GetCache(),
		s.GetSentry(),
		stores.PackageRepo,
		stores.HistoryRepo,
		stores.ScanRepo,
		stores.InventoryRepo,
		stores.UserRepo,
		s.GetPublisher(),
		s.GetAuditQueue(),
	)
}
