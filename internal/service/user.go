package service

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/api/dto"
	"github.com/parcelbase/parcelbase/internal/cache"
	"github.com/parcelbase/parcelbase/internal/domain/user"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
)

type UserService interface {
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error)
	// Authorize loads the active user behind an authenticated token
	Authorize(ctx context.Context, userID string) (*user.User, error)
	GetUserInfo(ctx context.Context, userID string) (*dto.UserResponse, error)
}

type userService struct {
	ServiceParams
}

func NewUserService(params ServiceParams) UserService {
	return &userService{ServiceParams: params}
}

func (s *userService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	if err := requireAdmin(ctx, "Only admins can add users"); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u := user.NewUser(ctx, req.ID, req.Name, req.Role)
	if err := s.UserRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixUser, u.ID))
	return &dto.UserResponse{User: u}, nil
}

func (s *userService) Authorize(ctx context.Context, userID string) (*user.User, error) {
	key := cache.GenerateKey(cache.PrefixUser, userID)
	if cached, ok := s.Cache.Get(ctx, key); ok {
		if u, ok := cached.(*user.User); ok {
			return u, nil
		}
	}

	u, err := s.UserRepo.GetByID(ctx, userID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.NewErrorf("user %s is not registered", userID).
				WithHint("This account is not registered").
				Mark(ierr.ErrPermissionDenied)
		}
		return nil, err
	}
	if !u.Active {
		return nil, ierr.NewErrorf("user %s is inactive", userID).
			WithHint("This account has been deactivated").
			Mark(ierr.ErrPermissionDenied)
	}

	s.Cache.Set(ctx, key, u, 0)
	return u, nil
}

func (s *userService) GetUserInfo(ctx context.Context, userID string) (*dto.UserResponse, error) {
	u, err := s.UserRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.UserResponse{User: u}, nil
}
