package dto

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	"github.com/parcelbase/parcelbase/internal/domain/scanlog"
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/parcelbase/parcelbase/internal/validator"
	"github.com/shopspring/decimal"
)

// ContentItemRequest is one inventory line packed into a package
type ContentItemRequest struct {
	ItemID   string          `json:"item_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

type CreatePackageRequest struct {
	Recipient           string               `json:"recipient" validate:"required,max=255"`
	Items               []ContentItemRequest `json:"items" validate:"omitempty,dive"`
	Note                string               `json:"note" validate:"omitempty,max=1000"`
	Origin              *string              `json:"origin" validate:"omitempty,max=255"`
	DestinationBranchID *string              `json:"destination_branch_id" validate:"omitempty,max=255"`
	CurrentLocation     *string              `json:"current_location" validate:"omitempty,max=255"`
}

func (r *CreatePackageRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	seen := make(map[string]bool, len(r.Items))
	for _, item := range r.Items {
		if !item.Quantity.IsPositive() {
			return ierr.NewErrorf("item %s has non-positive quantity %s", item.ItemID, item.Quantity).
				WithHint("Item quantities must be greater than zero").
				WithReportableDetails(map[string]any{"item_id": item.ItemID}).
				Mark(ierr.ErrValidation)
		}
		if seen[item.ItemID] {
			return ierr.NewErrorf("item %s listed twice", item.ItemID).
				WithHint("Each item may only be listed once").
				WithReportableDetails(map[string]any{"item_id": item.ItemID}).
				Mark(ierr.ErrValidation)
		}
		seen[item.ItemID] = true
	}
	return nil
}

// ToPackage builds the package row; the short code and contents note are
// filled in by the service.
func (r *CreatePackageRequest) ToPackage(ctx context.Context) *parcel.Package {
	return &parcel.Package{
		ID:                  types.GeneratePackageID(),
		Status:              types.PackageStatusCreated,
		CurrentLocation:     r.CurrentLocation,
		Origin:              r.Origin,
		DestinationBranchID: r.DestinationBranchID,
		Version:             1,
		BaseModel:           types.GetDefaultBaseModel(ctx),
	}
}

type PackageResponse struct {
	*parcel.Package
	TrackingURL  string                `json:"tracking_url"`
	NextStatuses []types.PackageStatus `json:"next_statuses"`
}

func NewPackageResponse(p *parcel.Package, origin string) *PackageResponse {
	return &PackageResponse{
		Package:      p,
		TrackingURL:  parcel.TrackingURL(origin, p.ShortCode),
		NextStatuses: p.Status.NextStatuses(),
	}
}

type ListPackagesResponse = types.ListResponse[*PackageResponse]

type PackageDetailResponse struct {
	*PackageResponse
	History []*statushistory.History `json:"history"`
}

type ListHistoryResponse = types.ListResponse[*statushistory.History]

type ListScansResponse = types.ListResponse[*scanlog.Scan]

// ChangeStatusRequest is a manual status change from the package screen
type ChangeStatusRequest struct {
	ExpectedStatus types.PackageStatus `json:"expected_status" validate:"required"`
	ToStatus       types.PackageStatus `json:"to_status" validate:"required"`
	Location       *string             `json:"location" validate:"omitempty,max=255"`
	Note           *string             `json:"note" validate:"omitempty,max=1000"`
	Force          bool                `json:"force"`
}

func (r *ChangeStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.ExpectedStatus.Validate(); err != nil {
		return err
	}
	return r.ToStatus.Validate()
}

type ChangeStatusResponse struct {
	Package       *PackageResponse       `json:"package"`
	History       *statushistory.History `json:"history,omitempty"`
	AuditComplete bool                   `json:"audit_complete"`
	AuditFailures []string               `json:"audit_failures,omitempty"`
}

// LabelResponse carries what a label printer needs. The QR payload is the
// JSON form the scanner resolves.
type LabelResponse struct {
	PackageID    string `json:"package_id"`
	ShortCode    string `json:"short_code"`
	TrackingURL  string `json:"tracking_url"`
	QRPayload    string `json:"qr_payload"`
	ContentsNote string `json:"contents_note"`
}
