package types

import (
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/samber/lo"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleStandard UserRole = "standard"
)

func (r UserRole) Validate() error {
	if !lo.Contains([]UserRole{UserRoleAdmin, UserRoleStandard}, r) {
		return ierr.NewErrorf("invalid user role %q", r).
			WithHint("Role must be admin or standard").
			Mark(ierr.ErrValidation)
	}
	return nil
}
