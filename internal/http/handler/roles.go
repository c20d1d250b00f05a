package handler

import (
	"context"
	"net/http"

	"mebel-erp/internal/auth"
	"mebel-erp/internal/domain"
	"mebel-erp/internal/service"

	"github.com/go-chi/chi/v5"
)

// RoleAdmin is the role-facing part of service.AccessService.
type RoleAdmin interface {
	ListRoles(ctx context.Context) ([]domain.Role, error)
	GetRole(ctx context.Context, roleID string) (*domain.RoleWithPermissions, error)
	CreateRole(ctx context.Context, actorID string, in service.CreateRoleInput) (*domain.RoleWithPermissions, error)
	DeleteRole(ctx context.Context, actorID, roleID string) error
	UpdateRolePermissions(ctx context.Context, actorID, roleID string, perms map[domain.Module]domain.PermissionFlags) error
}

type RoleHandler struct {
	access RoleAdmin
}

func NewRoleHandler(access RoleAdmin) *RoleHandler {
	return &RoleHandler{access: access}
}

func (h *RoleHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roles, err := h.access.ListRoles(ctx)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, roles)
}

func (h *RoleHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	role, err := h.access.GetRole(ctx, chi.URLParam(r, "roleId"))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, role)
}

func (h *RoleHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, _ := auth.UserIDFromContext(ctx)

	var req domain.CreateRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	role, err := h.access.CreateRole(ctx, actorID, service.CreateRoleInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	w.Header().Set("Location", "/v1/roles/"+role.ID)
	writeOK(w, http.StatusCreated, role)
}

func (h *RoleHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, _ := auth.UserIDFromContext(ctx)

	if err := h.access.DeleteRole(ctx, actorID, chi.URLParam(r, "roleId")); err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /v1/roles/{roleId}/permissions
func (h *RoleHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, _ := auth.UserIDFromContext(ctx)
	roleID := chi.URLParam(r, "roleId")

	var req domain.RolePermissionsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.access.UpdateRolePermissions(ctx, actorID, roleID, req.Permissions); err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	role, err := h.access.GetRole(ctx, roleID)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, role)
}
