package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"mebel-erp/internal/auth"
	"mebel-erp/internal/domain"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/service"

	"github.com/go-chi/chi/v5"
)

var errDB = errors.New("db down")

func strp(s string) *string { return &s }

type fakePerms struct {
	sets map[string]*domain.EffectivePermissionSet
	err  error
}

func (f *fakePerms) GetUserPermissions(_ context.Context, userID string) (*domain.EffectivePermissionSet, error) {
	return f.sets[userID], f.err
}

func (f *fakePerms) GetModulePermissions(ctx context.Context, userID string, m domain.Module) (domain.PermissionFlags, error) {
	set, err := f.GetUserPermissions(ctx, userID)
	return set.Module(m), err
}

func (f *fakePerms) HasPermission(ctx context.Context, userID string, m domain.Module, a domain.Action) (bool, error) {
	flags, err := f.GetModulePermissions(ctx, userID, m)
	return flags.Allows(a), err
}

type fakeStageChecker struct {
	allowed bool
	err     error
}

func (f *fakeStageChecker) CanUserPerform(context.Context, string, domain.StageType, domain.StageAction) (bool, error) {
	return f.allowed, f.err
}

type fakeAccess struct {
	err        error
	lastUpdate service.UserUpdateInput
	lastCreate service.CreateRoleInput
	lastPerms  map[domain.Module]domain.PermissionFlags
	actor      string
}

func (f *fakeAccess) ListUserOverrides(context.Context, string) ([]domain.UserPermission, error) {
	return []domain.UserPermission{{UserID: "u-1", Module: domain.ModuleFinance}}, f.err
}

func (f *fakeAccess) SetUserOverride(_ context.Context, actorID, userID string, m domain.Module, fl domain.PermissionFlags) (*domain.UserPermission, error) {
	f.actor = actorID
	if f.err != nil {
		return nil, f.err
	}
	return &domain.UserPermission{UserID: userID, Module: m, PermissionFlags: fl}, nil
}

func (f *fakeAccess) DeleteUserOverride(_ context.Context, actorID, _ string, _ domain.Module) error {
	f.actor = actorID
	return f.err
}

func (f *fakeAccess) UpdateUser(_ context.Context, actorID, userID string, in service.UserUpdateInput) (*domain.User, error) {
	f.actor = actorID
	f.lastUpdate = in
	if f.err != nil {
		return nil, f.err
	}
	u := &domain.User{ID: userID, Username: "ivanov", IsActive: true, RoleID: in.RoleID}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	return u, nil
}

func (f *fakeAccess) ListRoles(context.Context) ([]domain.Role, error) {
	return []domain.Role{{ID: "r-1", Code: "admin", Name: "Администратор", IsSystem: true}}, f.err
}

func (f *fakeAccess) GetRole(_ context.Context, roleID string) (*domain.RoleWithPermissions, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RoleWithPermissions{Role: domain.Role{ID: roleID, Code: "measurer"}}, nil
}

func (f *fakeAccess) CreateRole(_ context.Context, actorID string, in service.CreateRoleInput) (*domain.RoleWithPermissions, error) {
	f.actor = actorID
	f.lastCreate = in
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RoleWithPermissions{Role: domain.Role{ID: "r-new", Code: in.Code, Name: in.Name}}, nil
}

func (f *fakeAccess) DeleteRole(_ context.Context, actorID, _ string) error {
	f.actor = actorID
	return f.err
}

func (f *fakeAccess) UpdateRolePermissions(_ context.Context, actorID, _ string, perms map[domain.Module]domain.PermissionFlags) error {
	f.actor = actorID
	f.lastPerms = perms
	return f.err
}

type fakeStages struct {
	rows  []domain.StagePermission
	saved []domain.StagePermission
	reset bool
	err   error
}

func (f *fakeStages) GetPermission(_ context.Context, role string, st domain.StageType) (*domain.StagePermission, error) {
	for _, p := range f.rows {
		if p.Role == role && p.StageTypeCode == st {
			return &p, nil
		}
	}
	return nil, f.err
}

func (f *fakeStages) List(_ context.Context, role string, st domain.StageType) ([]domain.StagePermission, error) {
	if st != "" && !st.IsValid() {
		return nil, service.ErrInvalidStageType
	}
	out := []domain.StagePermission{}
	for _, p := range f.rows {
		if (role == "" || p.Role == role) && (st == "" || p.StageTypeCode == st) {
			out = append(out, p)
		}
	}
	return out, f.err
}

func (f *fakeStages) BulkSave(_ context.Context, _ string, perms []domain.StagePermission) error {
	if f.err != nil {
		return f.err
	}
	f.saved = perms
	return nil
}

func (f *fakeStages) ResetToDefaults(context.Context, string) error {
	if f.err != nil {
		return f.err
	}
	f.reset = true
	f.rows = domain.DefaultStagePermissions()
	return nil
}

// do routes a request through a chi router so URL params resolve.
func do(method, pattern, target, body, userID string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := logger.SetLoggerInContext(req.Context(), logger.Nop())
	if userID != "" {
		ctx = auth.SetIdentityForTesting(ctx, userID)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}
