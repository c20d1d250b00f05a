package handler

import (
	"net/http"
	"testing"

	"mebel-erp/internal/domain"
	"mebel-erp/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleHandler_CreateRole(t *testing.T) {
	access := &fakeAccess{}
	h := NewRoleHandler(access)

	body := `{"code":"designer","name":"Дизайнер","permissions":{"projects":{"can_view":true,"can_edit":true}}}`
	rec := do(http.MethodPost, "/v1/roles", "/v1/roles", body, "u-admin", h.CreateRole)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/v1/roles/r-new", rec.Header().Get("Location"))
	assert.Equal(t, "designer", access.lastCreate.Code)
	assert.Equal(t, domain.Flags("ve"), access.lastCreate.Permissions[domain.ModuleProjects])
}

func TestRoleHandler_CreateRole_Validation(t *testing.T) {
	h := NewRoleHandler(&fakeAccess{})

	rec := do(http.MethodPost, "/v1/roles", "/v1/roles", `{"name":"Без кода"}`, "u-admin", h.CreateRole)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec.Body.Bytes()).Error.Code)

	rec = do(http.MethodPost, "/v1/roles", "/v1/roles", `not json`, "u-admin", h.CreateRole)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoleHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrRoleNotFound, http.StatusNotFound, "NOT_FOUND"},
		{service.ErrRoleInUse, http.StatusConflict, "ROLE_IN_USE"},
		{service.ErrSystemRole, http.StatusConflict, "SYSTEM_ROLE"},
		{service.ErrRoleConflict, http.StatusConflict, "CONFLICT"},
		{errDB, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			h := NewRoleHandler(&fakeAccess{err: tt.err})
			rec := do(http.MethodDelete, "/v1/roles/{roleId}", "/v1/roles/r-1", "", "u-admin", h.DeleteRole)
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec.Body.Bytes()).Error.Code)
		})
	}
}

func TestRoleHandler_UpdatePermissions(t *testing.T) {
	access := &fakeAccess{}
	h := NewRoleHandler(access)
	pattern := "/v1/roles/{roleId}/permissions"

	rec := do(http.MethodPut, pattern, "/v1/roles/r-1/permissions", `{"permissions":{"finance":{"can_view":true}}}`, "u-admin", h.UpdatePermissions)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Flags("v"), access.lastPerms[domain.ModuleFinance])

	rec = do(http.MethodPut, pattern, "/v1/roles/r-1/permissions", `{"permissions":{}}`, "u-admin", h.UpdatePermissions)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	access.err = service.ErrSystemRoleViewLocked
	rec = do(http.MethodPut, pattern, "/v1/roles/r-1/permissions", `{"permissions":{"deals":{}}}`, "u-admin", h.UpdatePermissions)
	assert.Equal(t, http.StatusConflict, rec.Code)

	access.err = service.ErrInvalidModule
	rec = do(http.MethodPut, pattern, "/v1/roles/r-1/permissions", `{"permissions":{"payroll":{}}}`, "u-admin", h.UpdatePermissions)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoleHandler_ListAndGet(t *testing.T) {
	h := NewRoleHandler(&fakeAccess{})

	rec := do(http.MethodGet, "/v1/roles", "/v1/roles", "", "u-admin", h.ListRoles)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodGet, "/v1/roles/{roleId}", "/v1/roles/r-7", "", "u-admin", h.GetRole)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec.Body.Bytes()).Data), `"r-7"`)
}
