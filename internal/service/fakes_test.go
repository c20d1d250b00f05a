package service

import (
	"context"
	"errors"
	"sort"

	"mebel-erp/internal/domain"
	"mebel-erp/internal/repo"
)

type fakeRoles struct {
	roles   map[string]domain.Role
	perms   map[string]map[domain.Module]domain.PermissionFlags
	inUse   map[string]bool
	created int
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{
		roles: map[string]domain.Role{},
		perms: map[string]map[domain.Module]domain.PermissionFlags{},
		inUse: map[string]bool{},
	}
}

func (f *fakeRoles) List(context.Context) ([]domain.Role, error) {
	out := make([]domain.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRoles) Get(_ context.Context, id string) (*domain.Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, repo.ErrRoleNotFound
	}
	return &r, nil
}

func (f *fakeRoles) Create(_ context.Context, role *domain.Role, perms map[domain.Module]domain.PermissionFlags) error {
	for _, r := range f.roles {
		if r.Code == role.Code || r.Name == role.Name {
			return repo.ErrRoleConflict
		}
	}
	f.created++
	f.roles[role.ID] = *role
	f.perms[role.ID] = perms
	return nil
}

func (f *fakeRoles) Delete(_ context.Context, id string) error {
	r, ok := f.roles[id]
	switch {
	case !ok:
		return repo.ErrRoleNotFound
	case r.IsSystem:
		return repo.ErrSystemRole
	case f.inUse[id]:
		return repo.ErrRoleInUse
	}
	delete(f.roles, id)
	delete(f.perms, id)
	return nil
}

type fakePermissions struct {
	roles     *fakeRoles
	overrides map[string]map[domain.Module]domain.PermissionFlags
	users     *fakeUsers
}

func (f *fakePermissions) ListByRole(_ context.Context, roleID string) ([]domain.RolePermission, error) {
	out := []domain.RolePermission{}
	for _, m := range domain.Modules {
		if fl, ok := f.roles.perms[roleID][m]; ok {
			out = append(out, domain.RolePermission{RoleID: roleID, Module: m, PermissionFlags: fl})
		}
	}
	return out, nil
}

func (f *fakePermissions) ListByUser(_ context.Context, userID string) ([]domain.UserPermission, error) {
	out := []domain.UserPermission{}
	for m, fl := range f.overrides[userID] {
		out = append(out, domain.UserPermission{UserID: userID, Module: m, PermissionFlags: fl})
	}
	return out, nil
}

func (f *fakePermissions) ReplaceRolePermissions(_ context.Context, roleID string, perms map[domain.Module]domain.PermissionFlags) error {
	if _, ok := f.roles.roles[roleID]; !ok {
		return repo.ErrRoleNotFound
	}
	for m, fl := range perms {
		f.roles.perms[roleID][m] = fl
	}
	return nil
}

func (f *fakePermissions) UpsertUserOverride(_ context.Context, userID string, m domain.Module, fl domain.PermissionFlags) (*domain.UserPermission, error) {
	if _, ok := f.users.users[userID]; !ok {
		return nil, repo.ErrUserNotFound
	}
	if f.overrides[userID] == nil {
		f.overrides[userID] = map[domain.Module]domain.PermissionFlags{}
	}
	f.overrides[userID][m] = fl
	return &domain.UserPermission{UserID: userID, Module: m, PermissionFlags: fl}, nil
}

func (f *fakePermissions) DeleteUserOverride(_ context.Context, userID string, m domain.Module) error {
	if _, ok := f.overrides[userID][m]; !ok {
		return repo.ErrOverrideNotFound
	}
	delete(f.overrides[userID], m)
	return nil
}

type fakeUsers struct {
	users map[string]domain.User
	roles *fakeRoles
}

func (f *fakeUsers) Get(_ context.Context, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeUsers) Update(_ context.Context, id string, upd repo.UserUpdate) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	if upd.ClearRole {
		u.RoleID = nil
	} else if upd.RoleID != nil {
		if _, ok := f.roles.roles[*upd.RoleID]; !ok {
			return nil, repo.ErrRoleNotFound
		}
		u.RoleID = upd.RoleID
	}
	f.users[id] = u
	return &u, nil
}

type fakeAudit struct {
	entries []repo.AuditEntry
	err     error
}

func (f *fakeAudit) LogAction(_ context.Context, e repo.AuditEntry) error {
	f.entries = append(f.entries, e)
	return f.err
}

type fakeInvalidator struct {
	calls int
	err   error
}

func (f *fakeInvalidator) InvalidateCache(context.Context) error {
	f.calls++
	return f.err
}

type fakeStages struct {
	rows      map[string]domain.StagePermission
	failWrite error
}

func newFakeStages() *fakeStages {
	return &fakeStages{rows: map[string]domain.StagePermission{}}
}

func stageKey(role string, st domain.StageType) string {
	return role + "/" + string(st)
}

func (f *fakeStages) Get(_ context.Context, role string, st domain.StageType) (*domain.StagePermission, error) {
	p, ok := f.rows[stageKey(role, st)]
	if !ok {
		return nil, repo.ErrStagePermissionNotFound
	}
	return &p, nil
}

func (f *fakeStages) List(_ context.Context, flt repo.StageFilter) ([]domain.StagePermission, error) {
	out := []domain.StagePermission{}
	for _, p := range f.rows {
		if flt.Role != "" && p.Role != flt.Role {
			continue
		}
		if flt.StageType != "" && p.StageTypeCode != flt.StageType {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return stageKey(out[i].Role, out[i].StageTypeCode) < stageKey(out[j].Role, out[j].StageTypeCode)
	})
	return out, nil
}

func (f *fakeStages) Count(context.Context) (int64, error) {
	return int64(len(f.rows)), nil
}

// BulkUpsert applies all rows or none, like the transactional repository.
func (f *fakeStages) BulkUpsert(_ context.Context, perms []domain.StagePermission) error {
	if f.failWrite != nil {
		return f.failWrite
	}
	for _, p := range perms {
		f.rows[stageKey(p.Role, p.StageTypeCode)] = p
	}
	return nil
}

func (f *fakeStages) ReplaceAll(_ context.Context, perms []domain.StagePermission) error {
	if f.failWrite != nil {
		return f.failWrite
	}
	f.rows = map[string]domain.StagePermission{}
	for _, p := range perms {
		f.rows[stageKey(p.Role, p.StageTypeCode)] = p
	}
	return nil
}

type fakeSource struct {
	sets map[string]*domain.EffectivePermissionSet
	err  error
}

func (f *fakeSource) GetUserPermissions(_ context.Context, userID string) (*domain.EffectivePermissionSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sets[userID], nil
}

var errBoom = errors.New("boom")
