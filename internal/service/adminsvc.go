package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

const UsersPageSize = 20

type AdminUsersStore interface {
	ListUsers(ctx context.Context, keyword string, page, perPage int) (domain.UserPage, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type AdminService struct {
	Users AdminUsersStore
}

func (s *AdminService) ListUsers(ctx context.Context, keyword string, page int) (domain.UserPage, error) {
	if page < 1 {
		page = 1
	}
	return s.Users.ListUsers(ctx, strings.TrimSpace(keyword), page, UsersPageSize)
}

// DeleteUser removes a customer account. Admins cannot be deleted, nor can
// the acting admin delete themselves.
func (s *AdminService) DeleteUser(ctx context.Context, actorID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	if id == actorID {
		return domain.Invalid("You cannot delete your own account")
	}

	u, err := s.Users.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if u.IsAdmin {
		return domain.Invalid("Can not delete admin user")
	}
	return s.Users.DeleteUser(ctx, id)
}
