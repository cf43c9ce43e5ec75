package dto

import (
	"github.com/parcelbase/parcelbase/internal/scanner"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/parcelbase/parcelbase/internal/validator"
)

type CreateScanSessionRequest struct {
	Mode         types.ScanMode      `json:"mode" validate:"required"`
	TargetStatus types.PackageStatus `json:"target_status"`
	DeviceID     string              `json:"device_id" validate:"omitempty,max=255"`
	// InsecureContext is reported by clients that cannot access the camera
	// outside HTTPS
	InsecureContext bool    `json:"insecure_context"`
	TorchSupported  bool    `json:"torch_supported"`
	Location        *string `json:"location" validate:"omitempty,max=255"`
}

func (r *CreateScanSessionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	opts := r.ToOptions()
	return opts.Validate()
}

func (r *CreateScanSessionRequest) ToOptions() scanner.CreateOptions {
	return scanner.CreateOptions{
		Mode:           r.Mode,
		TargetStatus:   r.TargetStatus,
		DeviceID:       r.DeviceID,
		SecureContext:  !r.InsecureContext,
		TorchSupported: r.TorchSupported,
		Location:       r.Location,
	}
}

type ScanSessionResponse = scanner.Snapshot

type DecodeRequest struct {
	Text   string `json:"text"`
	Format string `json:"format" validate:"omitempty,max=64"`
}

type DecodeResponse struct {
	Outcome types.DecodeOutcome `json:"outcome"`
	Session scanner.Snapshot    `json:"session"`
}

type DeviceErrorRequest struct {
	Name    string `json:"name" validate:"required,max=128"`
	Message string `json:"message" validate:"omitempty,max=1000"`
}

func (r *DeviceErrorRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type TorchRequest struct {
	On bool `json:"on"`
}

type ConfirmStatusRequest struct {
	ToStatus types.PackageStatus `json:"to_status" validate:"required"`
	Note     *string             `json:"note" validate:"omitempty,max=1000"`
	Force    bool                `json:"force"`
}

func (r *ConfirmStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.ToStatus.Validate()
}

type ConfirmStatusResponse struct {
	Result  *scanner.StatusResult `json:"result"`
	Session scanner.Snapshot      `json:"session"`
}

type StatusPickerResponse struct {
	NextStatuses []types.PackageStatus `json:"next_statuses"`
	Session      scanner.Snapshot      `json:"session"`
}
