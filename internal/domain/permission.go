package domain

import "time"

// PermissionFlags is the full tuple of capabilities a caller holds on one module.
// The zero value denies everything.
type PermissionFlags struct {
	CanView    bool `json:"can_view"`
	CanCreate  bool `json:"can_create"`
	CanEdit    bool `json:"can_edit"`
	CanDelete  bool `json:"can_delete"`
	ViewAll    bool `json:"view_all"`
	HidePrices bool `json:"hide_prices"`
}

// Allows maps an action onto the matching flag. Unknown actions are denied.
func (f PermissionFlags) Allows(action Action) bool {
	switch action {
	case ActionView:
		return f.CanView
	case ActionCreate:
		return f.CanCreate
	case ActionEdit:
		return f.CanEdit
	case ActionDelete:
		return f.CanDelete
	}
	return false
}

// RolePermission is the default tuple a role grants on a module.
type RolePermission struct {
	RoleID    string    `json:"role_id"`
	Module    Module    `json:"module"`
	UpdatedAt time.Time `json:"updated_at"`
	PermissionFlags
}

// UserPermission is a per-user override. When present it replaces the role tuple
// for that module entirely, including false values.
type UserPermission struct {
	UserID    string    `json:"user_id"`
	Module    Module    `json:"module"`
	UpdatedAt time.Time `json:"updated_at"`
	PermissionFlags
}

// EffectivePermissionSet is the merged view for one user.
type EffectivePermissionSet struct {
	UserID      string                     `json:"user_id"`
	RoleID      *string                    `json:"role_id"`
	RoleName    *string                    `json:"role_name"`
	RoleCode    *string                    `json:"role_code"`
	IsActive    bool                       `json:"is_active"`
	Permissions map[Module]PermissionFlags `json:"permissions"`
}

// Module returns the tuple for m, or the zero tuple when the user is inactive
// or has no row for m.
func (s *EffectivePermissionSet) Module(m Module) PermissionFlags {
	if s == nil || !s.IsActive {
		return PermissionFlags{}
	}
	return s.Permissions[m]
}

// HidesAnyPrices reports whether any module in the set hides prices.
func (s *EffectivePermissionSet) HidesAnyPrices() bool {
	if s == nil || !s.IsActive {
		return false
	}
	for _, f := range s.Permissions {
		if f.HidePrices {
			return true
		}
	}
	return false
}

// MergePermissions builds the effective map: role rows first, then user rows
// replacing whole tuples.
func MergePermissions(roleRows []RolePermission, userRows []UserPermission) map[Module]PermissionFlags {
	merged := make(map[Module]PermissionFlags, len(roleRows)+len(userRows))
	for _, r := range roleRows {
		merged[r.Module] = r.PermissionFlags
	}
	for _, u := range userRows {
		merged[u.Module] = u.PermissionFlags
	}
	return merged
}
