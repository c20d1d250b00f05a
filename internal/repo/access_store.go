package repo

import (
	"context"
	"errors"

	"mebel-erp/internal/domain"
)

// AccessStore adapts the user, role and permission repositories to the
// resolver's read interface, turning not-found into nil results.
type AccessStore struct {
	users       *UserRepository
	roles       *RoleRepository
	permissions *PermissionRepository
}

func NewAccessStore(users *UserRepository, roles *RoleRepository, permissions *PermissionRepository) *AccessStore {
	return &AccessStore{users: users, roles: roles, permissions: permissions}
}

func (s *AccessStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	return u, err
}

func (s *AccessStore) GetRole(ctx context.Context, roleID string) (*domain.Role, error) {
	r, err := s.roles.Get(ctx, roleID)
	if errors.Is(err, ErrRoleNotFound) {
		return nil, nil
	}
	return r, err
}

func (s *AccessStore) ListRolePermissions(ctx context.Context, roleID string) ([]domain.RolePermission, error) {
	return s.permissions.ListByRole(ctx, roleID)
}

func (s *AccessStore) ListUserPermissions(ctx context.Context, userID string) ([]domain.UserPermission, error) {
	return s.permissions.ListByUser(ctx, userID)
}
