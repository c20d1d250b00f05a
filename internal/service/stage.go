package service

import (
	"context"
	"errors"
	"fmt"

	"mebel-erp/internal/domain"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/repo"

	"go.uber.org/zap"
)

type StageStore interface {
	Get(ctx context.Context, role string, stageType domain.StageType) (*domain.StagePermission, error)
	List(ctx context.Context, f repo.StageFilter) ([]domain.StagePermission, error)
	Count(ctx context.Context) (int64, error)
	BulkUpsert(ctx context.Context, perms []domain.StagePermission) error
	ReplaceAll(ctx context.Context, perms []domain.StagePermission) error
}

// PermissionSource resolves a user to their effective set (role code, active flag).
type PermissionSource interface {
	GetUserPermissions(ctx context.Context, userID string) (*domain.EffectivePermissionSet, error)
}

// StageService manages the role x stage type permission matrix.
type StageService struct {
	store StageStore
	users PermissionSource
	audit AuditLogger
}

func NewStageService(store StageStore, users PermissionSource, audit AuditLogger) *StageService {
	return &StageService{store: store, users: users, audit: audit}
}

// GetPermission returns the row for (role, stageType), or nil when none exists.
func (s *StageService) GetPermission(ctx context.Context, role string, stageType domain.StageType) (*domain.StagePermission, error) {
	p, err := s.store.Get(ctx, role, stageType)
	if errors.Is(err, repo.ErrStagePermissionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Can reports whether role may perform action on stages of stageType.
// A missing row or unknown action denies.
func (s *StageService) Can(ctx context.Context, role string, stageType domain.StageType, action domain.StageAction) (bool, error) {
	p, err := s.GetPermission(ctx, role, stageType)
	if err != nil || p == nil {
		return false, err
	}
	return p.Allows(action), nil
}

// CanUserPerform resolves the user's role code and checks the matrix.
// Unknown or inactive users and users without a role are denied.
func (s *StageService) CanUserPerform(ctx context.Context, userID string, stageType domain.StageType, action domain.StageAction) (bool, error) {
	set, err := s.users.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	if set == nil || !set.IsActive || set.RoleCode == nil {
		return false, nil
	}

	allowed, err := s.Can(ctx, *set.RoleCode, stageType, action)
	if err != nil {
		return false, err
	}
	if !allowed {
		logger.GetLogger(ctx).Debug(ctx, "stage action denied",
			logger.Module("stage_permission"),
			logger.Action(string(action)),
			zap.String("role_code", *set.RoleCode),
			zap.String("stage_type", string(stageType)),
		)
	}
	return allowed, nil
}

func (s *StageService) List(ctx context.Context, role string, stageType domain.StageType) ([]domain.StagePermission, error) {
	if stageType != "" && !stageType.IsValid() {
		return nil, ErrInvalidStageType
	}
	return s.store.List(ctx, repo.StageFilter{Role: role, StageType: stageType})
}

// BulkSave upserts every row atomically. Each row replaces the stored tuple
// for its (role, stage type); rows not mentioned are untouched.
func (s *StageService) BulkSave(ctx context.Context, actorID string, perms []domain.StagePermission) error {
	if len(perms) == 0 {
		return fmt.Errorf("%w: no rows", ErrInvalidStagePayload)
	}

	seen := make(map[string]bool, len(perms))
	for _, p := range perms {
		if p.Role == "" {
			return fmt.Errorf("%w: role is required", ErrInvalidStagePayload)
		}
		if !p.StageTypeCode.IsValid() {
			return fmt.Errorf("%w: %s", ErrInvalidStageType, p.StageTypeCode)
		}
		key := p.Role + "/" + string(p.StageTypeCode)
		if seen[key] {
			return fmt.Errorf("%w: duplicate row %s", ErrInvalidStagePayload, key)
		}
		seen[key] = true
	}

	if err := s.store.BulkUpsert(ctx, perms); err != nil {
		return err
	}

	logAudit(ctx, s.audit, "stage_permission", repo.AuditEntry{
		ActorID:      actorID,
		Action:       domain.AuditStageBulkSave,
		ResourceType: "stage_permissions",
		Metadata:     map[string]any{"rows": len(perms)},
	})
	return nil
}

// ResetToDefaults replaces the whole matrix with the built-in defaults atomically.
func (s *StageService) ResetToDefaults(ctx context.Context, actorID string) error {
	defaults := domain.DefaultStagePermissions()
	if err := s.store.ReplaceAll(ctx, defaults); err != nil {
		return err
	}

	logAudit(ctx, s.audit, "stage_permission", repo.AuditEntry{
		ActorID:      actorID,
		Action:       domain.AuditStageReset,
		ResourceType: "stage_permissions",
		Metadata:     map[string]any{"rows": len(defaults)},
	})
	return nil
}

// SeedIfEmpty installs the defaults on a fresh database. Returns true when it did.
func (s *StageService) SeedIfEmpty(ctx context.Context) (bool, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := s.store.BulkUpsert(ctx, domain.DefaultStagePermissions()); err != nil {
		return false, err
	}
	return true, nil
}
