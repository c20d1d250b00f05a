package repo_test

import (
	"context"
	"testing"

	"mebel-erp/internal/domain"
	"mebel-erp/internal/permission"
	"mebel-erp/internal/repo"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleRepository_EnsureSeed_Integration(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	roles := repo.NewRoleRepository(pool)
	permissions := repo.NewPermissionRepository(pool)

	seed := domain.SeedRole{
		Code:        "test_seed_" + uuid.NewString()[:8],
		Name:        "Test seed " + uuid.NewString()[:8],
		Permissions: map[domain.Module]domain.PermissionFlags{domain.ModuleDeals: domain.Flags("vh")},
	}

	id, created, err := roles.EnsureSeed(ctx, uuid.NewString(), seed)
	require.NoError(t, err)
	assert.True(t, created)
	t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `DELETE FROM roles WHERE id = $1`, id) })

	rows, err := permissions.ListByRole(ctx, id)
	require.NoError(t, err)
	assert.Len(t, rows, len(domain.Modules))

	// an administrator edit survives a second seed run
	require.NoError(t, permissions.ReplaceRolePermissions(ctx, id, map[domain.Module]domain.PermissionFlags{
		domain.ModuleDeals: domain.Flags("vce"),
	}))

	again, created, err := roles.EnsureSeed(ctx, uuid.NewString(), seed)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)

	byCode, err := roles.GetByCode(ctx, seed.Code)
	require.NoError(t, err)
	assert.Equal(t, id, byCode.ID)

	_, err = roles.GetByCode(ctx, "missing_"+uuid.NewString()[:8])
	assert.ErrorIs(t, err, repo.ErrRoleNotFound)

	rows, err = permissions.ListByRole(ctx, id)
	require.NoError(t, err)
	for _, p := range rows {
		if p.Module == domain.ModuleDeals {
			assert.Equal(t, domain.Flags("vce"), p.PermissionFlags)
		}
	}
}

func TestRoleRepository_Delete_Integration(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	roles := repo.NewRoleRepository(pool)
	users := repo.NewUserRepository(pool)

	newRole := func(system bool) *domain.Role {
		r := &domain.Role{ID: uuid.NewString(), Code: "test_" + uuid.NewString()[:8], Name: "Test " + uuid.NewString()[:8], IsSystem: system}
		require.NoError(t, roles.Create(ctx, r, map[domain.Module]domain.PermissionFlags{domain.ModuleTasks: domain.Flags("v")}))
		t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `DELETE FROM roles WHERE id = $1`, r.ID) })
		return r
	}

	t.Run("unreferenced role", func(t *testing.T) {
		r := newRole(false)
		require.NoError(t, roles.Delete(ctx, r.ID))
		_, err := roles.Get(ctx, r.ID)
		assert.ErrorIs(t, err, repo.ErrRoleNotFound)
	})

	t.Run("system role", func(t *testing.T) {
		r := newRole(true)
		assert.ErrorIs(t, roles.Delete(ctx, r.ID), repo.ErrSystemRole)
	})

	t.Run("role in use", func(t *testing.T) {
		r := newRole(false)
		u := &domain.User{ID: uuid.NewString(), Username: "test_" + uuid.NewString()[:8], IsActive: true, RoleID: &r.ID}
		require.NoError(t, users.Create(ctx, u))
		t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, u.ID) })

		assert.ErrorIs(t, roles.Delete(ctx, r.ID), repo.ErrRoleInUse)
	})

	t.Run("duplicate code", func(t *testing.T) {
		r := newRole(false)
		dup := &domain.Role{ID: uuid.NewString(), Code: r.Code, Name: "Other " + uuid.NewString()[:8]}
		assert.ErrorIs(t, roles.Create(ctx, dup, nil), repo.ErrRoleConflict)
	})

	t.Run("missing role", func(t *testing.T) {
		assert.ErrorIs(t, roles.Delete(ctx, uuid.NewString()), repo.ErrRoleNotFound)
	})
}

func TestAccessStore_ResolvesSeededRoles_Integration(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	users := repo.NewUserRepository(pool)
	roles := repo.NewRoleRepository(pool)
	permissions := repo.NewPermissionRepository(pool)
	resolver := permission.NewResolver(repo.NewAccessStore(users, roles, permissions), nil, nil)

	var measurerID string
	for _, seed := range domain.DefaultRoles() {
		if seed.Code != domain.RoleCodeMeasurer {
			continue
		}
		id, _, err := roles.EnsureSeed(ctx, uuid.NewString(), seed)
		require.NoError(t, err)
		measurerID = id
	}
	require.NotEmpty(t, measurerID)

	u := &domain.User{ID: uuid.NewString(), Username: "test_" + uuid.NewString()[:8], IsActive: true, RoleID: &measurerID}
	require.NoError(t, users.Create(ctx, u))
	t.Cleanup(func() { _, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, u.ID) })

	ok, err := resolver.HasPermission(ctx, u.ID, domain.ModuleFinance, domain.ActionView)
	require.NoError(t, err)
	assert.False(t, ok)

	// an override replaces the role tuple for that module only
	_, err = permissions.UpsertUserOverride(ctx, u.ID, domain.ModuleFinance, domain.Flags("vh"))
	require.NoError(t, err)

	flags, err := resolver.GetModulePermissions(ctx, u.ID, domain.ModuleFinance)
	require.NoError(t, err)
	assert.Equal(t, domain.Flags("vh"), flags)

	require.NoError(t, permissions.DeleteUserOverride(ctx, u.ID, domain.ModuleFinance))
	assert.ErrorIs(t, permissions.DeleteUserOverride(ctx, u.ID, domain.ModuleFinance), repo.ErrOverrideNotFound)

	inactive := false
	_, err = users.Update(ctx, u.ID, repo.UserUpdate{IsActive: &inactive})
	require.NoError(t, err)

	set, err := resolver.GetUserPermissions(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.False(t, set.IsActive)
	ok, err = resolver.HasPermission(ctx, u.ID, domain.ModuleMeasurements, domain.ActionEdit)
	require.NoError(t, err)
	assert.False(t, ok)

	missing, err := resolver.GetUserPermissions(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
