package user

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/types"
)

type User struct {
	ID     string         `db:"id" json:"id"`
	Name   string         `db:"name" json:"name"`
	Role   types.UserRole `db:"role" json:"role"`
	Active bool           `db:"active" json:"active"`
	types.BaseModel
}

func NewUser(ctx context.Context, id, name string, role types.UserRole) *User {
	if id == "" {
		id = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USER)
	}
	return &User{
		ID:        id,
		Name:      name,
		Role:      role,
		Active:    true,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Active && u.Role == types.UserRoleAdmin
}
