package service

import (
	"context"
	"errors"
	"fmt"

	"mebel-erp/internal/domain"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RoleStore interface {
	List(ctx context.Context) ([]domain.Role, error)
	Get(ctx context.Context, roleID string) (*domain.Role, error)
	Create(ctx context.Context, role *domain.Role, perms map[domain.Module]domain.PermissionFlags) error
	Delete(ctx context.Context, roleID string) error
}

type PermissionStore interface {
	ListByRole(ctx context.Context, roleID string) ([]domain.RolePermission, error)
	ListByUser(ctx context.Context, userID string) ([]domain.UserPermission, error)
	ReplaceRolePermissions(ctx context.Context, roleID string, perms map[domain.Module]domain.PermissionFlags) error
	UpsertUserOverride(ctx context.Context, userID string, module domain.Module, f domain.PermissionFlags) (*domain.UserPermission, error)
	DeleteUserOverride(ctx context.Context, userID string, module domain.Module) error
}

type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, upd repo.UserUpdate) (*domain.User, error)
}

type AuditLogger interface {
	LogAction(ctx context.Context, e repo.AuditEntry) error
}

// CacheInvalidator drops cached permission sets after a write.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// AccessService administers roles, role permissions, user overrides and user
// activation. Every successful write invalidates the permission cache.
type AccessService struct {
	roles       RoleStore
	permissions PermissionStore
	users       UserStore
	audit       AuditLogger
	cache       CacheInvalidator
}

func NewAccessService(roles RoleStore, permissions PermissionStore, users UserStore, audit AuditLogger, cache CacheInvalidator) *AccessService {
	return &AccessService{
		roles:       roles,
		permissions: permissions,
		users:       users,
		audit:       audit,
		cache:       cache,
	}
}

type CreateRoleInput struct {
	Code        string
	Name        string
	Description *string
	Permissions map[domain.Module]domain.PermissionFlags
}

// UserUpdateInput is a partial update of a user's access fields.
type UserUpdateInput struct {
	IsActive  *bool
	RoleID    *string
	ClearRole bool
}

func (s *AccessService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.roles.List(ctx)
}

func (s *AccessService) GetRole(ctx context.Context, roleID string) (*domain.RoleWithPermissions, error) {
	role, err := s.roles.Get(ctx, roleID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	perms, err := s.permissions.ListByRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return &domain.RoleWithPermissions{Role: *role, Permissions: perms}, nil
}

// CreateRole stores the role with a row for every registered module.
// Modules absent from the input get the all-false tuple.
func (s *AccessService) CreateRole(ctx context.Context, actorID string, in CreateRoleInput) (*domain.RoleWithPermissions, error) {
	if err := validateModules(in.Permissions); err != nil {
		return nil, err
	}

	perms := make(map[domain.Module]domain.PermissionFlags, len(domain.Modules))
	for _, m := range domain.Modules {
		perms[m] = in.Permissions[m]
	}

	role := &domain.Role{
		ID:          uuid.NewString(),
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
	}
	if err := s.roles.Create(ctx, role, perms); err != nil {
		return nil, mapRepoErr(err)
	}

	s.logAction(ctx, actorID, domain.AuditRoleCreate, "role", role.ID, map[string]any{"code": role.Code})

	rows := make([]domain.RolePermission, 0, len(domain.Modules))
	for _, m := range domain.Modules {
		rows = append(rows, domain.RolePermission{RoleID: role.ID, Module: m, PermissionFlags: perms[m]})
	}
	return &domain.RoleWithPermissions{Role: *role, Permissions: rows}, nil
}

func (s *AccessService) DeleteRole(ctx context.Context, actorID, roleID string) error {
	if err := s.roles.Delete(ctx, roleID); err != nil {
		return mapRepoErr(err)
	}

	s.logAction(ctx, actorID, domain.AuditRoleDelete, "role", roleID, nil)
	return s.invalidate(ctx)
}

// UpdateRolePermissions upserts the given module rows of a role in one transaction.
// System roles must keep can_view on every module they are sent.
func (s *AccessService) UpdateRolePermissions(ctx context.Context, actorID, roleID string, perms map[domain.Module]domain.PermissionFlags) error {
	if err := validateModules(perms); err != nil {
		return err
	}

	role, err := s.roles.Get(ctx, roleID)
	if err != nil {
		return mapRepoErr(err)
	}
	if role.IsSystem {
		for _, f := range perms {
			if !f.CanView {
				return ErrSystemRoleViewLocked
			}
		}
	}

	if err := s.permissions.ReplaceRolePermissions(ctx, roleID, perms); err != nil {
		return mapRepoErr(err)
	}

	modules := make([]string, 0, len(perms))
	for m := range perms {
		modules = append(modules, string(m))
	}
	s.logAction(ctx, actorID, domain.AuditRolePermissions, "role", roleID, map[string]any{"modules": modules})
	return s.invalidate(ctx)
}

// ListUserOverrides returns the raw override rows of a user.
func (s *AccessService) ListUserOverrides(ctx context.Context, userID string) ([]domain.UserPermission, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, mapRepoErr(err)
	}
	return s.permissions.ListByUser(ctx, userID)
}

// SetUserOverride replaces the user's tuple for module; the role default no longer applies.
func (s *AccessService) SetUserOverride(ctx context.Context, actorID, userID string, module domain.Module, f domain.PermissionFlags) (*domain.UserPermission, error) {
	if !module.IsValid() {
		return nil, ErrInvalidModule
	}

	p, err := s.permissions.UpsertUserOverride(ctx, userID, module, f)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	s.logAction(ctx, actorID, domain.AuditUserOverrideSet, "user", userID, map[string]any{"module": string(module)})
	return p, s.invalidate(ctx)
}

func (s *AccessService) DeleteUserOverride(ctx context.Context, actorID, userID string, module domain.Module) error {
	if !module.IsValid() {
		return ErrInvalidModule
	}

	if err := s.permissions.DeleteUserOverride(ctx, userID, module); err != nil {
		return mapRepoErr(err)
	}

	s.logAction(ctx, actorID, domain.AuditUserOverrideDelete, "user", userID, map[string]any{"module": string(module)})
	return s.invalidate(ctx)
}

// UpdateUser activates/deactivates a user or changes their role.
func (s *AccessService) UpdateUser(ctx context.Context, actorID, userID string, in UserUpdateInput) (*domain.User, error) {
	u, err := s.users.Update(ctx, userID, repo.UserUpdate{
		IsActive:  in.IsActive,
		RoleID:    in.RoleID,
		ClearRole: in.ClearRole,
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}

	meta := map[string]any{}
	if in.IsActive != nil {
		meta["is_active"] = *in.IsActive
	}
	if in.RoleID != nil {
		meta["role_id"] = *in.RoleID
	}
	if in.ClearRole {
		meta["role_id"] = nil
	}
	s.logAction(ctx, actorID, domain.AuditUserUpdate, "user", userID, meta)
	return u, s.invalidate(ctx)
}

func (s *AccessService) invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.InvalidateCache(ctx); err != nil {
		logger.GetLogger(ctx).Error(ctx, "permission cache invalidation failed",
			logger.Module("access"),
			logger.Action("invalidate_cache"),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrPermissionCacheStale, err)
	}
	return nil
}

func (s *AccessService) logAction(ctx context.Context, actorID, action, resourceType, resourceID string, meta map[string]any) {
	logAudit(ctx, s.audit, "access", repo.AuditEntry{
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   &resourceID,
		Metadata:     meta,
	})
}

// logAudit writes an audit entry; failures are logged and never fail the request.
func logAudit(ctx context.Context, audit AuditLogger, module string, e repo.AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.LogAction(ctx, e); err != nil {
		logger.GetLogger(ctx).Warn(ctx, "failed to write audit log",
			logger.Module(module),
			logger.Action(e.Action),
			zap.Error(err),
		)
	}
}

func validateModules(perms map[domain.Module]domain.PermissionFlags) error {
	for m := range perms {
		if !m.IsValid() {
			return fmt.Errorf("%w: %s", ErrInvalidModule, m)
		}
	}
	return nil
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, repo.ErrRoleNotFound):
		return ErrRoleNotFound
	case errors.Is(err, repo.ErrRoleConflict):
		return ErrRoleConflict
	case errors.Is(err, repo.ErrRoleInUse):
		return ErrRoleInUse
	case errors.Is(err, repo.ErrSystemRole):
		return ErrSystemRole
	case errors.Is(err, repo.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repo.ErrOverrideNotFound):
		return ErrOverrideNotFound
	}
	return err
}
