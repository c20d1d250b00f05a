package domain

import "time"

// Role groups default module permissions. Code is the stable machine key used by
// the stage permission matrix; Name is what users see.
type Role struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleWithPermissions is a role plus its per-module rows.
type RoleWithPermissions struct {
	Role
	Permissions []RolePermission `json:"permissions"`
}

// User is the subset of the account record the access core reads.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  *string   `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	RoleID    *string   `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Audit actions recorded for access administration.
const (
	AuditRoleCreate         = "role.create"
	AuditRoleDelete         = "role.delete"
	AuditRolePermissions    = "role.permissions.update"
	AuditUserOverrideSet    = "user.permission.set"
	AuditUserOverrideDelete = "user.permission.delete"
	AuditUserUpdate         = "user.update"
	AuditStageBulkSave      = "stage_permissions.bulk_save"
	AuditStageReset         = "stage_permissions.reset"
)
