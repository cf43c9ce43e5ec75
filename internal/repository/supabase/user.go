package supabase

import (
	"context"

	"github.com/nedpals/supabase-go"
	"github.com/parcelbase/parcelbase/internal/domain/user"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
)

type userRepository struct {
	client *supabase.Client
	logger *logger.Logger
}

func NewUserRepository(client *supabase.Client, logger *logger.Logger) user.Repository {
	return &userRepository{client: client, logger: logger}
}

func (r *userRepository) Create(ctx context.Context, u *user.User) error {
	var rows []user.User
	if err := r.client.DB.From(tableUsers).Insert(u).Execute(&rows); err != nil {
		return wrapError(err, "Failed to create user", map[string]any{"user_id": u.ID})
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	var rows []user.User
	if err := r.client.DB.From(tableUsers).Select(selectAll).Eq("id", id).Execute(&rows); err != nil {
		return nil, wrapError(err, "Failed to get user", map[string]any{"user_id": id})
	}
	if len(rows) == 0 {
		return nil, ierr.NewError("user not found").
			WithHint("User not found").
			WithReportableDetails(map[string]any{"user_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return &rows[0], nil
}
