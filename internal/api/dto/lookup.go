package dto

import (
	"github.com/parcelbase/parcelbase/internal/domain/statushistory"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/parcelbase/parcelbase/internal/validator"
)

// LookupRequest resolves raw decoded text outside a scan session
type LookupRequest struct {
	Raw string `json:"raw" validate:"required"`
}

func (r *LookupRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type LookupResponse struct {
	Code    string                   `json:"code"`
	Package *PackageResponse         `json:"package"`
	History []*statushistory.History `json:"history"`
}

type StatusesResponse struct {
	Statuses    []types.PackageStatus    `json:"statuses"`
	Transitions []types.StatusTransition `json:"transitions"`
}
