package permission

import (
	"context"
	"errors"
	"testing"

	"mebel-erp/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seededStore loads the built-in role tables and one user per role ("u_<code>").
func seededStore() *fakeStore {
	s := newFakeStore()
	for _, r := range domain.DefaultRoles() {
		id := "role_" + r.Code
		s.roles[id] = domain.Role{ID: id, Code: r.Code, Name: r.Name, IsSystem: r.IsSystem}
		for m, f := range r.Permissions {
			s.roleRows[id] = append(s.roleRows[id], domain.RolePermission{RoleID: id, Module: m, PermissionFlags: f})
		}
		s.addUser("u_"+r.Code, true, id)
	}
	return s
}

func TestResolver_UnknownUser(t *testing.T) {
	r := NewResolver(newFakeStore(), nil, nil)
	ctx := context.Background()

	set, err := r.GetUserPermissions(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, set)

	ok, err := r.HasPermission(ctx, "ghost", domain.ModuleDeals, domain.ActionView)
	require.NoError(t, err)
	assert.False(t, ok)

	flags, err := r.GetModulePermissions(ctx, "ghost", domain.ModuleDeals)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionFlags{}, flags)

	hide, err := r.ShouldHidePricesAny(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, hide)
}

func TestResolver_InactiveUserIsDeniedEverywhere(t *testing.T) {
	s := newFakeStore()
	s.addRole("r1", "admin", "Администратор", map[domain.Module]string{domain.ModuleDeals: "vcedah"})
	s.addUser("u1", false, "r1")
	s.addOverride("u1", domain.ModuleFinance, "vceda")
	r := NewResolver(s, nil, nil)
	ctx := context.Background()

	set, err := r.GetUserPermissions(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.False(t, set.IsActive)
	assert.Equal(t, "Администратор", *set.RoleName)

	for _, m := range []domain.Module{domain.ModuleDeals, domain.ModuleFinance} {
		for _, a := range []domain.Action{domain.ActionView, domain.ActionCreate, domain.ActionEdit, domain.ActionDelete} {
			ok, err := r.HasPermission(ctx, "u1", m, a)
			require.NoError(t, err)
			assert.False(t, ok, "%s:%s", m, a)
		}
		all, _ := r.CanViewAll(ctx, "u1", m)
		assert.False(t, all)
		hide, _ := r.ShouldHidePrices(ctx, "u1", m)
		assert.False(t, hide)
		flags, _ := r.GetModulePermissions(ctx, "u1", m)
		assert.Equal(t, domain.PermissionFlags{}, flags)
	}
	hideAny, _ := r.ShouldHidePricesAny(ctx, "u1")
	assert.False(t, hideAny)
}

func TestResolver_NoRoleNoOverrides(t *testing.T) {
	s := newFakeStore()
	s.addUser("u1", true, "")
	r := NewResolver(s, nil, nil)

	set, err := r.GetUserPermissions(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, set.Permissions)
	assert.Nil(t, set.RoleName)

	flags, err := r.GetModulePermissions(context.Background(), "u1", domain.ModuleTasks)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionFlags{}, flags)
}

func TestResolver_NoRoleWithOverride(t *testing.T) {
	s := newFakeStore()
	s.addUser("u1", true, "")
	s.addOverride("u1", domain.ModuleTasks, "vc")
	r := NewResolver(s, nil, nil)

	ok, err := r.HasPermission(context.Background(), "u1", domain.ModuleTasks, domain.ActionCreate)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolver_DanglingRoleIsIgnored(t *testing.T) {
	s := newFakeStore()
	s.addUser("u1", true, "deleted-role")
	r := NewResolver(s, nil, nil)

	set, err := r.GetUserPermissions(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, set.RoleID)
	assert.Empty(t, set.Permissions)
}

func TestResolver_OverrideWinsWholeTuple(t *testing.T) {
	s := newFakeStore()
	s.addRole("r1", "sales_manager", "Менеджер по продажам", map[domain.Module]string{
		domain.ModuleDeals:   "vceda",
		domain.ModuleFinance: "v",
	})
	s.addUser("u1", true, "r1")
	// role grants create; the override grants only view and hides prices
	s.addOverride("u1", domain.ModuleDeals, "vh")
	r := NewResolver(s, nil, nil)
	ctx := context.Background()

	flags, err := r.GetModulePermissions(ctx, "u1", domain.ModuleDeals)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionFlags{CanView: true, HidePrices: true}, flags)

	create, err := r.HasPermission(ctx, "u1", domain.ModuleDeals, domain.ActionCreate)
	require.NoError(t, err)
	assert.False(t, create)

	finance, err := r.GetModulePermissions(ctx, "u1", domain.ModuleFinance)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionFlags{CanView: true}, finance)
}

func TestResolver_UnknownModuleAndAction(t *testing.T) {
	r := NewResolver(seededStore(), nil, nil)
	ctx := context.Background()

	ok, err := r.HasPermission(ctx, "u_admin", domain.Module("payroll"), domain.ActionView)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.HasPermission(ctx, "u_admin", domain.ModuleDeals, domain.Action("approve"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_SeededRoles(t *testing.T) {
	r := NewResolver(seededStore(), nil, nil)
	ctx := context.Background()

	tests := []struct {
		user   string
		module domain.Module
		action domain.Action
		want   bool
	}{
		{"u_admin", domain.ModuleWarehouse, domain.ActionDelete, true},
		{"u_admin", domain.ModuleSettings, domain.ActionEdit, true},
		{"u_measurer", domain.ModuleFinance, domain.ActionView, false},
		{"u_measurer", domain.ModuleMeasurements, domain.ActionEdit, true},
		{"u_measurer", domain.ModuleMeasurements, domain.ActionDelete, false},
		{"u_financier", domain.ModuleFinance, domain.ActionDelete, true},
		{"u_installer", domain.ModuleSettings, domain.ActionView, false},
		{"u_sales_manager", domain.ModuleDeals, domain.ActionCreate, true},
	}

	for _, tt := range tests {
		t.Run(tt.user+"/"+string(tt.module)+"/"+string(tt.action), func(t *testing.T) {
			got, err := r.HasPermission(ctx, tt.user, tt.module, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	all, err := r.CanViewAll(ctx, "u_admin", domain.ModuleDeals)
	require.NoError(t, err)
	assert.True(t, all)

	hide, err := r.ShouldHidePrices(ctx, "u_constructor", domain.ModuleProjects)
	require.NoError(t, err)
	assert.True(t, hide)

	hideAny, err := r.ShouldHidePricesAny(ctx, "u_constructor")
	require.NoError(t, err)
	assert.True(t, hideAny)

	hideAny, err = r.ShouldHidePricesAny(ctx, "u_admin")
	require.NoError(t, err)
	assert.False(t, hideAny)
}

func TestResolver_GetUserPermissionsIsRepeatable(t *testing.T) {
	r := NewResolver(seededStore(), nil, nil)
	ctx := context.Background()

	first, err := r.GetUserPermissions(ctx, "u_estimator")
	require.NoError(t, err)
	second, err := r.GetUserPermissions(ctx, "u_estimator")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "estimator", *first.RoleCode)
	assert.Len(t, first.Permissions, len(domain.Modules))
}

func TestResolver_PropagatesStorageErrors(t *testing.T) {
	boom := errors.New("connection refused")

	for _, method := range []string{"GetUser", "GetRole", "ListRolePermissions", "ListUserPermissions"} {
		t.Run(method, func(t *testing.T) {
			s := seededStore()
			s.failOn, s.failErr = method, boom
			r := NewResolver(s, nil, nil)
			ctx := context.Background()

			set, err := r.GetUserPermissions(ctx, "u_admin")
			assert.ErrorIs(t, err, boom)
			assert.Nil(t, set)

			ok, err := r.HasPermission(ctx, "u_admin", domain.ModuleDeals, domain.ActionView)
			assert.ErrorIs(t, err, boom)
			assert.False(t, ok)

			flags, err := r.GetModulePermissions(ctx, "u_admin", domain.ModuleDeals)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, domain.PermissionFlags{}, flags)

			_, err = r.ShouldHidePricesAny(ctx, "u_admin")
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestResolver_InvalidateWithoutCache(t *testing.T) {
	r := NewResolver(newFakeStore(), nil, nil)
	assert.NoError(t, r.InvalidateCache(context.Background()))
}
