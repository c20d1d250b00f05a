package handler

import (
	"context"
	"net/http"

	"mebel-erp/internal/auth"
	"mebel-erp/internal/domain"
	"mebel-erp/internal/http/httperr"
	"mebel-erp/internal/service"

	"github.com/go-chi/chi/v5"
)

// UserAdmin is the user-facing part of service.AccessService.
type UserAdmin interface {
	ListUserOverrides(ctx context.Context, userID string) ([]domain.UserPermission, error)
	SetUserOverride(ctx context.Context, actorID, userID string, module domain.Module, f domain.PermissionFlags) (*domain.UserPermission, error)
	DeleteUserOverride(ctx context.Context, actorID, userID string, module domain.Module) error
	UpdateUser(ctx context.Context, actorID, userID string, in service.UserUpdateInput) (*domain.User, error)
}

// UserHandler inspects and administers other users' permissions.
type UserHandler struct {
	perms  PermissionReader
	access UserAdmin
}

func NewUserHandler(perms PermissionReader, access UserAdmin) *UserHandler {
	return &UserHandler{perms: perms, access: access}
}

// GET /v1/users/{userId}/permissions
func (h *UserHandler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	set, err := h.perms.GetUserPermissions(ctx, chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	if set == nil {
		httperr.NotFound404(w, ctx, "user not found")
		return
	}
	writeOK(w, http.StatusOK, newPermissionSetView(set))
}

// GET /v1/users/{userId}/permissions/{module}
func (h *UserHandler) GetModulePermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	module, ok := moduleParam(w, r)
	if !ok {
		return
	}

	flags, err := h.perms.GetModulePermissions(ctx, chi.URLParam(r, "userId"), module)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, ModulePermissionsView{Module: module, PermissionFlags: flags})
}

// GET /v1/users/{userId}/permissions/{module}/{action}
func (h *UserHandler) HasPermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	module, ok := moduleParam(w, r)
	if !ok {
		return
	}
	action := domain.Action(chi.URLParam(r, "action"))
	if !action.IsValid() {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidAction, "unknown action")
		return
	}

	allowed, err := h.perms.HasPermission(ctx, chi.URLParam(r, "userId"), module, action)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, AllowedView{Allowed: allowed})
}

// GET /v1/users/{userId}/overrides
func (h *UserHandler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.access.ListUserOverrides(ctx, chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, rows)
}

// PUT /v1/users/{userId}/permissions/{module}
func (h *UserHandler) PutOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, _ := auth.UserIDFromContext(ctx)

	module, ok := moduleParam(w, r)
	if !ok {
		return
	}

	var req flagsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.access.SetUserOverride(ctx, actorID, chi.URLParam(r, "userId"), module, req.PermissionFlags)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, p)
}

// DELETE /v1/users/{userId}/permissions/{module}
func (h *UserHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, _ := auth.UserIDFromContext(ctx)

	module, ok := moduleParam(w, r)
	if !ok {
		return
	}

	if err := h.access.DeleteUserOverride(ctx, actorID, chi.URLParam(r, "userId"), module); err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PATCH /v1/users/{userId}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, _ := auth.UserIDFromContext(ctx)

	var req domain.UpdateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	roleID, clearRole, _ := req.RoleChange()

	u, err := h.access.UpdateUser(ctx, actorID, chi.URLParam(r, "userId"), service.UserUpdateInput{
		IsActive:  req.IsActive,
		RoleID:    roleID,
		ClearRole: clearRole,
	})
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, u)
}

// flagsRequest is a bare permission tuple body. Omitted flags are false.
type flagsRequest struct {
	domain.PermissionFlags
}

func (flagsRequest) Validate() error { return nil }
