package handler

import (
	"context"
	"net/http"

	"mebel-erp/internal/auth"
	"mebel-erp/internal/domain"
	"mebel-erp/internal/http/httperr"
	"mebel-erp/internal/observability/logger"

	"github.com/go-chi/chi/v5"
)

// PermissionReader is the read side of permission.Resolver.
type PermissionReader interface {
	GetUserPermissions(ctx context.Context, userID string) (*domain.EffectivePermissionSet, error)
	GetModulePermissions(ctx context.Context, userID string, module domain.Module) (domain.PermissionFlags, error)
	HasPermission(ctx context.Context, userID string, module domain.Module, action domain.Action) (bool, error)
}

// StageChecker answers stage matrix questions for a user.
type StageChecker interface {
	CanUserPerform(ctx context.Context, userID string, stageType domain.StageType, action domain.StageAction) (bool, error)
}

// PermissionSetView lists every registered module, so inactive users and
// modules without rows show all-false tuples.
type PermissionSetView struct {
	UserID      string                                   `json:"user_id"`
	RoleID      *string                                  `json:"role_id"`
	RoleName    *string                                  `json:"role_name"`
	RoleCode    *string                                  `json:"role_code"`
	IsActive    bool                                     `json:"is_active"`
	Permissions map[domain.Module]domain.PermissionFlags `json:"permissions"`
}

func newPermissionSetView(set *domain.EffectivePermissionSet) PermissionSetView {
	perms := make(map[domain.Module]domain.PermissionFlags, len(domain.Modules))
	for _, m := range domain.Modules {
		perms[m] = set.Module(m)
	}
	return PermissionSetView{
		UserID:      set.UserID,
		RoleID:      set.RoleID,
		RoleName:    set.RoleName,
		RoleCode:    set.RoleCode,
		IsActive:    set.IsActive,
		Permissions: perms,
	}
}

type ModulePermissionsView struct {
	Module domain.Module `json:"module"`
	domain.PermissionFlags
}

type AllowedView struct {
	Allowed bool `json:"allowed"`
}

// MeHandler serves the caller's own permissions.
type MeHandler struct {
	perms  PermissionReader
	stages StageChecker
}

func NewMeHandler(perms PermissionReader, stages StageChecker) *MeHandler {
	return &MeHandler{perms: perms, stages: stages}
}

// GET /v1/me/permissions
func (h *MeHandler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFromContext(ctx)

	set, err := h.perms.GetUserPermissions(ctx, userID)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	if set == nil {
		httperr.NotFound404(w, ctx, "user not found")
		return
	}
	if set.RoleCode != nil {
		ctx = logger.SetRoleCodeInContext(ctx, *set.RoleCode)
	}
	logger.GetLogger(ctx).Debug(ctx, "permissions resolved",
		logger.Module("permission"),
		logger.Action("me"),
	)

	writeOK(w, http.StatusOK, newPermissionSetView(set))
}

// GET /v1/me/permissions/{module}
func (h *MeHandler) GetModulePermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFromContext(ctx)

	module, ok := moduleParam(w, r)
	if !ok {
		return
	}

	flags, err := h.perms.GetModulePermissions(ctx, userID, module)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, ModulePermissionsView{Module: module, PermissionFlags: flags})
}

// GET /v1/me/stage-permissions/{stageType}/{action}
func (h *MeHandler) CheckStageAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFromContext(ctx)

	stageType := domain.StageType(chi.URLParam(r, "stageType"))
	if !stageType.IsValid() {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidStageType, "unknown stage type")
		return
	}
	action := domain.StageAction(chi.URLParam(r, "action"))
	if !action.IsValid() {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidAction, "unknown stage action")
		return
	}

	allowed, err := h.stages.CanUserPerform(ctx, userID, stageType, action)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}
	writeOK(w, http.StatusOK, AllowedView{Allowed: allowed})
}

func moduleParam(w http.ResponseWriter, r *http.Request) (domain.Module, bool) {
	module := domain.Module(chi.URLParam(r, "module"))
	if !module.IsValid() {
		httperr.BadRequest400(w, r.Context(), httperr.ErrCodeInvalidModule, "unknown module")
		return "", false
	}
	return module, true
}
