package service

import (
	"context"

	"github.com/spec-kit/storefront-api/internal/auth"
	"github.com/spec-kit/storefront-api/internal/domain"
	"github.com/spec-kit/storefront-api/internal/repository"
)

// UserService exposes account records to handlers.
type UserService struct {
	users repository.UserRepository
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// List returns every account holding the user role. Callers gate it to admins.
func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	return s.users.ListByRole(ctx, domain.RoleUser)
}

// Get loads an account and lets only its owner or an admin see it.
func (s *UserService) Get(ctx context.Context, identity domain.Identity, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwnerOrAdmin(identity, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}
