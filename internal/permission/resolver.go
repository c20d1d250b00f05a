// Package permission resolves a user's effective module permissions from role
// defaults and per-user overrides.
package permission

import (
	"context"
	"fmt"

	"mebel-erp/internal/domain"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Store is the read side the resolver needs. GetUser and GetRole return nil, nil
// when the record does not exist.
type Store interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetRole(ctx context.Context, roleID string) (*domain.Role, error)
	ListRolePermissions(ctx context.Context, roleID string) ([]domain.RolePermission, error)
	ListUserPermissions(ctx context.Context, userID string) ([]domain.UserPermission, error)
}

// Resolver answers permission queries. Every query recomputes the set from the
// store unless a cache is attached; writes invalidate that cache explicitly.
type Resolver struct {
	store   Store
	cache   *Cache
	metrics *telemetry.Metrics
}

// NewResolver creates a resolver. cache and metrics may be nil.
func NewResolver(store Store, cache *Cache, metrics *telemetry.Metrics) *Resolver {
	return &Resolver{store: store, cache: cache, metrics: metrics}
}

// GetUserPermissions returns the merged set for userID, or nil, nil when the
// user does not exist. Inactive users get their computed set with IsActive=false.
func (r *Resolver) GetUserPermissions(ctx context.Context, userID string) (*domain.EffectivePermissionSet, error) {
	ctx, span := telemetry.Tracer("permission").Start(ctx, "permission.GetUserPermissions")
	defer span.End()

	var gen int64
	if r.cache != nil {
		var (
			set *domain.EffectivePermissionSet
			hit bool
		)
		// generation must be read before the store so a concurrent write is never cached as current
		set, gen, hit = r.cache.Get(ctx, userID)
		if hit {
			r.metrics.RecordCacheLookup(ctx, "hit")
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return set, nil
		}
		r.metrics.RecordCacheLookup(ctx, "miss")
	}

	set, err := r.compute(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve permissions")
		return nil, err
	}

	if set != nil && r.cache != nil {
		r.cache.Put(ctx, gen, set)
	}
	return set, nil
}

func (r *Resolver) compute(ctx context.Context, userID string) (*domain.EffectivePermissionSet, error) {
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	if user == nil {
		return nil, nil
	}

	set := &domain.EffectivePermissionSet{
		UserID:   user.ID,
		IsActive: user.IsActive,
	}

	var roleRows []domain.RolePermission
	if user.RoleID != nil {
		role, err := r.store.GetRole(ctx, *user.RoleID)
		if err != nil {
			return nil, fmt.Errorf("load role %s: %w", *user.RoleID, err)
		}
		if role != nil {
			set.RoleID = &role.ID
			set.RoleName = &role.Name
			set.RoleCode = &role.Code

			roleRows, err = r.store.ListRolePermissions(ctx, role.ID)
			if err != nil {
				return nil, fmt.Errorf("load role permissions %s: %w", role.ID, err)
			}
		}
	}

	userRows, err := r.store.ListUserPermissions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load user permissions %s: %w", user.ID, err)
	}

	set.Permissions = domain.MergePermissions(roleRows, userRows)
	return set, nil
}

// HasPermission reports whether the user may perform action on module.
// Unknown users, inactive users, missing rows and unknown actions all deny.
func (r *Resolver) HasPermission(ctx context.Context, userID string, module domain.Module, action domain.Action) (bool, error) {
	set, err := r.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}

	allowed := set.Module(module).Allows(action)
	r.record(ctx, userID, module, string(action), allowed)
	return allowed, nil
}

// CanViewAll reports whether the user sees records owned by others in module.
func (r *Resolver) CanViewAll(ctx context.Context, userID string, module domain.Module) (bool, error) {
	set, err := r.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}

	allowed := set.Module(module).ViewAll
	r.record(ctx, userID, module, "view_all", allowed)
	return allowed, nil
}

// GetModulePermissions returns the user's tuple for module. Any disqualification
// yields the all-false tuple, never an error.
func (r *Resolver) GetModulePermissions(ctx context.Context, userID string, module domain.Module) (domain.PermissionFlags, error) {
	set, err := r.GetUserPermissions(ctx, userID)
	if err != nil {
		return domain.PermissionFlags{}, err
	}
	return set.Module(module), nil
}

// ShouldHidePrices reports whether price fields must be masked for module.
func (r *Resolver) ShouldHidePrices(ctx context.Context, userID string, module domain.Module) (bool, error) {
	set, err := r.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Module(module).HidePrices, nil
}

// ShouldHidePricesAny reports whether any module of the user hides prices.
func (r *Resolver) ShouldHidePricesAny(ctx context.Context, userID string) (bool, error) {
	set, err := r.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.HidesAnyPrices(), nil
}

// InvalidateCache drops every cached set. Called after any write that can
// change a user's effective permissions.
func (r *Resolver) InvalidateCache(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Invalidate(ctx)
}

func (r *Resolver) record(ctx context.Context, userID string, module domain.Module, action string, allowed bool) {
	r.metrics.RecordPermissionCheck(ctx, string(module), action, allowed)
	if !allowed {
		logger.GetLogger(ctx).Debug(ctx, "permission denied",
			logger.Module("permission"),
			logger.Action(action),
			zap.String("subject_user_id", userID),
			zap.String("target_module", string(module)),
		)
	}
}
