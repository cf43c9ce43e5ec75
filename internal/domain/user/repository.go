package user

import (
	"context"
)

// Repository stores operator accounts. Accounts are created by admins or the
// migrate tool and never deleted through the API.
type Repository interface {
	Create(ctx context.Context, user *User) error
	// GetByID returns ErrNotFound when the id has no account
	GetByID(ctx context.Context, id string) (*User, error)
}
