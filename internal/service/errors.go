package service

import "errors"

var (
	ErrRoleNotFound         = errors.New("role not found")
	ErrRoleConflict         = errors.New("role with this code or name already exists")
	ErrRoleInUse            = errors.New("role is assigned to users")
	ErrSystemRole           = errors.New("system role cannot be deleted")
	ErrSystemRoleViewLocked = errors.New("system role must keep view access on every module")
	ErrUserNotFound         = errors.New("user not found")
	ErrOverrideNotFound     = errors.New("user permission override not found")
	ErrInvalidModule        = errors.New("unknown module")
	ErrInvalidStageType     = errors.New("unknown stage type")
	ErrInvalidStagePayload  = errors.New("invalid stage permission payload")
	ErrPermissionCacheStale = errors.New("change saved but permission cache invalidation failed")
)
