package dto

import (
	"github.com/parcelbase/parcelbase/internal/domain/user"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/parcelbase/parcelbase/internal/validator"
)

type CreateUserRequest struct {
	ID   string         `json:"id" validate:"omitempty,max=64"`
	Name string         `json:"name" validate:"required,max=255"`
	Role types.UserRole `json:"role" validate:"required"`
}

func (r *CreateUserRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Role.Validate()
}

type UserResponse struct {
	*user.User
}
