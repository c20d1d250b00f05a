package permission

import (
	"context"
	"sync"

	"mebel-erp/internal/domain"
)

// fakeStore is an in-memory Store. Set failOn to a method name to make it fail.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]domain.User
	roles     map[string]domain.Role
	roleRows  map[string][]domain.RolePermission
	userRows  map[string][]domain.UserPermission
	failOn    string
	failErr   error
	userCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]domain.User{},
		roles:    map[string]domain.Role{},
		roleRows: map[string][]domain.RolePermission{},
		userRows: map[string][]domain.UserPermission{},
	}
}

func (s *fakeStore) addRole(id, code, name string, cells map[domain.Module]string) {
	s.roles[id] = domain.Role{ID: id, Code: code, Name: name}
	for m, cell := range cells {
		s.roleRows[id] = append(s.roleRows[id], domain.RolePermission{RoleID: id, Module: m, PermissionFlags: domain.Flags(cell)})
	}
}

func (s *fakeStore) addUser(id string, active bool, roleID string) {
	u := domain.User{ID: id, Username: id, IsActive: active}
	if roleID != "" {
		u.RoleID = &roleID
	}
	s.users[id] = u
}

func (s *fakeStore) addOverride(userID string, m domain.Module, cell string) {
	s.userRows[userID] = append(s.userRows[userID], domain.UserPermission{UserID: userID, Module: m, PermissionFlags: domain.Flags(cell)})
}

func (s *fakeStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userCalls++
	if s.failOn == "GetUser" {
		return nil, s.failErr
	}
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *fakeStore) GetRole(_ context.Context, id string) (*domain.Role, error) {
	if s.failOn == "GetRole" {
		return nil, s.failErr
	}
	r, ok := s.roles[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *fakeStore) ListRolePermissions(_ context.Context, roleID string) ([]domain.RolePermission, error) {
	if s.failOn == "ListRolePermissions" {
		return nil, s.failErr
	}
	return s.roleRows[roleID], nil
}

func (s *fakeStore) ListUserPermissions(_ context.Context, userID string) ([]domain.UserPermission, error) {
	if s.failOn == "ListUserPermissions" {
		return nil, s.failErr
	}
	return s.userRows[userID], nil
}
