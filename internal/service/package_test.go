package service

import (
	"encoding/json"
	"testing"

	"github.com/parcelbase/parcelbase/internal/api/dto"
	"github.com/parcelbase/parcelbase/internal/domain/inventory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/scanner"
	"github.com/parcelbase/parcelbase/internal/testutil"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PackageServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PackageService
}

func TestPackageService(t *testing.T) {
	suite.Run(t, new(PackageServiceSuite))
}

func (s *PackageServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := testParams(&s.BaseServiceTestSuite)
	s.service = NewPackageService(params, NewStatusService(params))
}

func (s *PackageServiceSuite) TestCreatePackage() {
	box := s.CreateItem("BOX-M", "Box", 10)
	tape := s.CreateItem("TAPE", "Tape", 3)
	ctx := s.GetContext()

	resp, err := s.service.CreatePackage(ctx, dto.CreatePackageRequest{
		Recipient: "Jane Doe",
		Items: []dto.ContentItemRequest{
			{ItemID: box.ID, Quantity: decimal.NewFromInt(2)},
			{ItemID: tape.ID, Quantity: decimal.NewFromInt(1)},
		},
		Note: "fragile",
	})
	s.Require().NoError(err)

	s.Equal(types.PackageStatusCreated, resp.Status)
	s.Equal(1, resp.Version)
	s.Len(resp.ShortCode, types.SHORT_CODE_LENGTH)
	s.Equal("To: Jane Doe; Items: Box x2, Tape x1; Note: fragile", resp.ContentsNote)
	s.Equal("https://parcels.test/track/"+resp.ShortCode, resp.TrackingURL)
	s.ElementsMatch(types.PackageStatusCreated.NextStatuses(), resp.NextStatuses)

	s.Require().Len(resp.History, 1)
	s.Nil(resp.History[0].FromStatus)
	s.Equal(types.PackageStatusCreated, resp.History[0].ToStatus)

	stored, err := s.GetStores().InventoryRepo.GetItem(ctx, box.ID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(8).Equal(stored.Quantity))

	movements := s.GetStores().InventoryRepo.Movements(ctx, box.ID)
	s.Require().Len(movements, 1)
	s.Equal(types.MovementReasonPackageCreated, movements[0].Reason)
	s.Equal(resp.ID, lo.FromPtr(movements[0].PackageID))
	s.True(decimal.NewFromInt(-2).Equal(movements[0].Delta))
}

func (s *PackageServiceSuite) TestCreatePackageValidation() {
	box := s.CreateItem("BOX-M", "Box", 1)

	testCases := []struct {
		name    string
		request dto.CreatePackageRequest
		check   func(error) bool
	}{
		{
			name:    "missing_recipient",
			request: dto.CreatePackageRequest{},
			check:   ierr.IsValidation,
		},
		{
			name: "zero_quantity",
			request: dto.CreatePackageRequest{
				Recipient: "Jane",
				Items:     []dto.ContentItemRequest{{ItemID: box.ID, Quantity: decimal.Zero}},
			},
			check: ierr.IsValidation,
		},
		{
			name: "duplicate_item",
			request: dto.CreatePackageRequest{
				Recipient: "Jane",
				Items: []dto.ContentItemRequest{
					{ItemID: box.ID, Quantity: decimal.NewFromInt(1)},
					{ItemID: box.ID, Quantity: decimal.NewFromInt(1)},
				},
			},
			check: ierr.IsValidation,
		},
		{
			name: "unknown_item",
			request: dto.CreatePackageRequest{
				Recipient: "Jane",
				Items:     []dto.ContentItemRequest{{ItemID: "inv_missing", Quantity: decimal.NewFromInt(1)}},
			},
			check: ierr.IsNotFound,
		},
		{
			name: "not_enough_stock",
			request: dto.CreatePackageRequest{
				Recipient: "Jane",
				Items:     []dto.ContentItemRequest{{ItemID: box.ID, Quantity: decimal.NewFromInt(2)}},
			},
			check: ierr.IsInvalidOperation,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.service.CreatePackage(s.GetContext(), tc.request)
			s.Require().Error(err)
			s.True(tc.check(err), err.Error())
		})
	}

	count, err := s.GetStores().PackageRepo.Count(s.GetContext(), types.NewPackageFilter())
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *PackageServiceSuite) TestShortCodeCollisionIsRetried() {
	collision := ierr.NewError("duplicate short code").Mark(ierr.ErrAlreadyExists)
	s.GetStores().PackageRepo.FailNext("create", collision)
	s.GetStores().PackageRepo.FailNext("create", collision)

	resp, err := s.service.CreatePackage(s.GetContext(), dto.CreatePackageRequest{Recipient: "Jane"})
	s.Require().NoError(err)
	s.NotEmpty(resp.ShortCode)
	s.Equal([]string{"create", "create", "create"}, s.GetStores().PackageRepo.Calls())
}

func (s *PackageServiceSuite) TestShortCodeCollisionGivesUp() {
	s.GetStores().PackageRepo.FailAlways("create", ierr.NewError("duplicate short code").Mark(ierr.ErrAlreadyExists))

	_, err := s.service.CreatePackage(s.GetContext(), dto.CreatePackageRequest{Recipient: "Jane"})
	s.Require().Error(err)
	s.True(ierr.IsAlreadyExists(err))
	s.Len(s.GetStores().PackageRepo.Calls(), maxShortCodeAttempts)
}

func (s *PackageServiceSuite) TestInventoryFailureRollsBackPackage() {
	box := s.CreateItem("BOX-M", "Box", 10)
	tape := s.CreateItem("TAPE", "Tape", 3)
	ctx := s.GetContext()
	inv := s.GetStores().InventoryRepo
	// first decrement succeeds, the second fails
	inv.FailNext("adjust", nil)
	inv.FailNext("adjust", testutil.ErrWriteFailed())

	_, err := s.service.CreatePackage(ctx, dto.CreatePackageRequest{
		Recipient: "Jane",
		Items: []dto.ContentItemRequest{
			{ItemID: box.ID, Quantity: decimal.NewFromInt(4)},
			{ItemID: tape.ID, Quantity: decimal.NewFromInt(1)},
		},
	})
	s.Require().Error(err)
	s.True(ierr.IsDatabase(err))

	stored, err := inv.GetItem(ctx, box.ID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(10).Equal(stored.Quantity), stored.Quantity.String())

	reasons := lo.Map(inv.Movements(ctx, box.ID), func(m *inventory.Movement, _ int) types.MovementReason { return m.Reason })
	s.ElementsMatch([]types.MovementReason{types.MovementReasonPackageCreated, types.MovementReasonCompensation}, reasons)

	count, err := s.GetStores().PackageRepo.Count(ctx, types.NewPackageFilter())
	s.Require().NoError(err)
	s.Zero(count)

	rows, err := s.GetStores().HistoryRepo.InMemoryStore.Count(ctx, nil, nil)
	s.Require().NoError(err)
	s.Zero(rows)
}

func (s *PackageServiceSuite) TestGetAndList() {
	ctx := s.GetContext()
	a := s.CreatePackage("PKAAAAAAA", types.PackageStatusCreated)
	s.CreatePackage("PKBBBBBBB", types.PackageStatusInTransit)

	detail, err := s.service.GetPackageByShortCode(ctx, "PKAAAAAAA")
	s.Require().NoError(err)
	s.Equal(a.ID, detail.ID)
	s.Len(detail.History, 1)

	_, err = s.service.GetPackage(ctx, "missing")
	s.True(ierr.IsNotFound(err))

	filter := types.NewPackageFilter()
	filter.Statuses = []types.PackageStatus{types.PackageStatusInTransit}
	list, err := s.service.ListPackages(ctx, filter)
	s.Require().NoError(err)
	s.Require().Len(list.Items, 1)
	s.Equal("PKBBBBBBB", list.Items[0].ShortCode)
	s.Equal(1, list.Pagination.Total)

	filter.Statuses = []types.PackageStatus{"lost"}
	_, err = s.service.ListPackages(ctx, filter)
	s.True(ierr.IsValidation(err))
}

func (s *PackageServiceSuite) TestChangeStatusFromPackageScreen() {
	pkg := s.CreatePackage("PKAAAAAAA", types.PackageStatusCreated)

	resp, err := s.service.ChangeStatus(s.GetContext(), pkg.ID, dto.ChangeStatusRequest{
		ExpectedStatus: types.PackageStatusCreated,
		ToStatus:       types.PackageStatusQueuedForPrint,
	})
	s.Require().NoError(err)
	s.Equal(types.PackageStatusQueuedForPrint, resp.Package.Status)
	s.True(resp.AuditComplete)
	s.NotNil(resp.History)

	history, err := s.service.ListHistory(s.GetContext(), pkg.ID, nil)
	s.Require().NoError(err)
	s.Len(history.Items, 2)

	scans, err := s.service.ListScans(s.GetContext(), pkg.ID, nil)
	s.Require().NoError(err)
	s.Empty(scans.Items)
}

func (s *PackageServiceSuite) TestLabelPayloadResolvesBack() {
	pkg := s.CreatePackage("PKAAAAAAA", types.PackageStatusCreated)

	label, err := s.service.GetLabel(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Equal("https://parcels.test/track/PKAAAAAAA", label.TrackingURL)

	var payload map[string]string
	s.Require().NoError(json.Unmarshal([]byte(label.QRPayload), &payload))
	s.Equal(pkg.ID, payload["id"])
	s.Equal("PKAAAAAAA", payload["short_code"])

	noise := s.GetConfig().Scanner.NoiseLiterals
	for _, raw := range []string{label.QRPayload, label.TrackingURL} {
		code, err := scanner.ExtractIdentifier(raw, s.GetConfig().Scanner.MinCodeLength, noise)
		s.Require().NoError(err)
		s.Contains([]string{pkg.ID, pkg.ShortCode}, code)
	}
}

func (s *PackageServiceSuite) TestDeletePackage() {
	pkg := s.CreatePackage("PKAAAAAAA", types.PackageStatusCreated)

	err := s.service.DeletePackage(s.GetContext(), pkg.ID)
	s.True(ierr.IsPermissionDenied(err))

	_, err = s.service.ChangeStatus(s.GetContext(), pkg.ID, dto.ChangeStatusRequest{
		ExpectedStatus: types.PackageStatusCreated,
		ToStatus:       types.PackageStatusPrinted,
	})
	s.Require().NoError(err)

	s.Require().NoError(s.service.DeletePackage(s.GetAdminContext(), pkg.ID))
	_, err = s.service.GetPackage(s.GetContext(), pkg.ID)
	s.True(ierr.IsNotFound(err))

	history, err := s.GetStores().HistoryRepo.ListByPackage(s.GetContext(), types.NewHistoryFilter(pkg.ID, 10))
	s.Require().NoError(err)
	s.Empty(history)

	err = s.service.DeletePackage(s.GetAdminContext(), pkg.ID)
	s.True(ierr.IsNotFound(err))
}
