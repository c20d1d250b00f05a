package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CreateRoleRequest is the body of POST /v1/roles.
type CreateRoleRequest struct {
	Code        string                     `json:"code" validate:"required,min=2,max=64"`
	Name        string                     `json:"name" validate:"required,min=1,max=255"`
	Description *string                    `json:"description,omitempty" validate:"omitempty,max=1000"`
	Permissions map[Module]PermissionFlags `json:"permissions"`
}

// Validate trims text fields and checks the request.
func (r *CreateRoleRequest) Validate() error {
	r.Code = strings.TrimSpace(r.Code)
	r.Name = strings.TrimSpace(r.Name)
	if strings.ContainsAny(r.Code, " \t\n") {
		return errors.New("code must not contain whitespace")
	}
	return validate.Struct(r)
}

// RolePermissionsRequest is the body of PUT /v1/roles/{roleId}/permissions.
type RolePermissionsRequest struct {
	Permissions map[Module]PermissionFlags `json:"permissions" validate:"required,min=1"`
}

func (r *RolePermissionsRequest) Validate() error {
	return validate.Struct(r)
}

// UpdateUserRequest is the body of PATCH /v1/users/{userId}.
// role_id: absent keeps the role, null clears it, a string assigns it.
type UpdateUserRequest struct {
	IsActive *bool           `json:"is_active,omitempty"`
	RoleID   json.RawMessage `json:"role_id,omitempty"`
}

// RoleChange decodes role_id. clear is true for an explicit null.
func (r *UpdateUserRequest) RoleChange() (roleID *string, clear bool, err error) {
	if len(r.RoleID) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(bytes.TrimSpace(r.RoleID), []byte("null")) {
		return nil, true, nil
	}
	var id string
	if err := json.Unmarshal(r.RoleID, &id); err != nil {
		return nil, false, fmt.Errorf("role_id must be a string or null")
	}
	if strings.TrimSpace(id) == "" {
		return nil, false, errors.New("role_id must not be empty")
	}
	return &id, false, nil
}

func (r *UpdateUserRequest) Validate() error {
	if r.IsActive == nil && len(r.RoleID) == 0 {
		return errors.New("at least one of is_active, role_id is required")
	}
	_, _, err := r.RoleChange()
	return err
}

// StagePermissionsRequest is the body of PUT /v1/stage-permissions.
type StagePermissionsRequest struct {
	Permissions []StagePermission `json:"permissions" validate:"required,min=1,dive"`
}

func (r *StagePermissionsRequest) Validate() error {
	for i := range r.Permissions {
		r.Permissions[i].Role = strings.TrimSpace(r.Permissions[i].Role)
	}
	return validate.Struct(r)
}

// ResetStagePermissionsRequest guards the destructive reset.
type ResetStagePermissionsRequest struct {
	Confirm bool `json:"confirm"`
}

func (r *ResetStagePermissionsRequest) Validate() error {
	if !r.Confirm {
		return errors.New("confirm must be true")
	}
	return nil
}
