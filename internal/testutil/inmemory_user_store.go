package testutil

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/domain/user"
)

// InMemoryUserStore implements user.Repository
type InMemoryUserStore struct {
	*InMemoryStore[*user.User]
	*Faults
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		InMemoryStore: NewInMemoryStore[*user.User](),
		Faults:        newFaults(),
	}
}

func (s *InMemoryUserStore) Create(ctx context.Context, u *user.User) error {
	if err := s.hit("create"); err != nil {
		return err
	}
	cp := *u
	return s.InMemoryStore.Create(ctx, u.ID, &cp)
}

func (s *InMemoryUserStore) GetByID(ctx context.Context, id string) (*user.User, error) {
	if err := s.hit("get"); err != nil {
		return nil, err
	}
	u, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryUserStore) Clear() {
	s.InMemoryStore.Clear()
	s.Faults.Reset()
}
