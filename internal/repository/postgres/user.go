package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/parcelbase/parcelbase/internal/domain/user"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/postgres"
)

type userRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewUserRepository(db *postgres.DB, logger *logger.Logger) user.Repository {
	return &userRepository{db: db, logger: logger}
}

func (r *userRepository) Create(ctx context.Context, u *user.User) error {
	query := `
	INSERT INTO users (id, name, role, active, created_at, updated_at, created_by, updated_by)
	VALUES (:id, :name, :role, :active, :created_at, :updated_at, :created_by, :updated_by)
	`
	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, u); err != nil {
		return wrapError(err, "Failed to create user", map[string]any{"user_id": u.ID})
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	query := `SELECT id, name, role, active, created_at, updated_at, created_by, updated_by FROM users WHERE id = $1`

	var u user.User
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("user not found").
				WithHint("User not found").
				WithReportableDetails(map[string]any{"user_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, wrapError(err, "Failed to get user", map[string]any{"user_id": id})
	}
	return &u, nil
}
