package repo

import (
	"context"
	"errors"
	"fmt"

	"mebel-erp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOverrideNotFound = errors.New("user permission override not found")

// PermissionRepository stores role default rows and per-user overrides.
type PermissionRepository struct {
	pool *pgxpool.Pool
}

func NewPermissionRepository(pool *pgxpool.Pool) *PermissionRepository {
	return &PermissionRepository{pool: pool}
}

const flagColumns = `can_view, can_create, can_edit, can_delete, view_all, hide_prices`

func flagDest(f *domain.PermissionFlags) []any {
	return []any{&f.CanView, &f.CanCreate, &f.CanEdit, &f.CanDelete, &f.ViewAll, &f.HidePrices}
}

func (r *PermissionRepository) ListByRole(ctx context.Context, roleID string) ([]domain.RolePermission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT role_id, module, `+flagColumns+`, updated_at
		FROM role_permissions WHERE role_id = $1 ORDER BY module
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}
	defer rows.Close()

	out := []domain.RolePermission{}
	for rows.Next() {
		var p domain.RolePermission
		dest := append([]any{&p.RoleID, &p.Module}, flagDest(&p.PermissionFlags)...)
		if err := rows.Scan(append(dest, &p.UpdatedAt)...); err != nil {
			return nil, fmt.Errorf("scan role permission: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PermissionRepository) ListByUser(ctx context.Context, userID string) ([]domain.UserPermission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, module, `+flagColumns+`, updated_at
		FROM user_permissions WHERE user_id = $1 ORDER BY module
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user permissions: %w", err)
	}
	defer rows.Close()

	out := []domain.UserPermission{}
	for rows.Next() {
		var p domain.UserPermission
		dest := append([]any{&p.UserID, &p.Module}, flagDest(&p.PermissionFlags)...)
		if err := rows.Scan(append(dest, &p.UpdatedAt)...); err != nil {
			return nil, fmt.Errorf("scan user permission: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplaceRolePermissions upserts every given row in one transaction.
// Modules not present in perms are left untouched.
func (r *PermissionRepository) ReplaceRolePermissions(ctx context.Context, roleID string, perms map[domain.Module]domain.PermissionFlags) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if !exists {
		return ErrRoleNotFound
	}

	if err := upsertRolePermissions(ctx, tx, roleID, perms); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit role permissions: %w", err)
	}
	return nil
}

func upsertRolePermissions(ctx context.Context, db dbtx, roleID string, perms map[domain.Module]domain.PermissionFlags) error {
	batch := &pgx.Batch{}
	for _, m := range domain.Modules {
		f, ok := perms[m]
		if !ok {
			continue
		}
		batch.Queue(`
			INSERT INTO role_permissions (role_id, module, `+flagColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (role_id, module) DO UPDATE SET
				can_view = EXCLUDED.can_view,
				can_create = EXCLUDED.can_create,
				can_edit = EXCLUDED.can_edit,
				can_delete = EXCLUDED.can_delete,
				view_all = EXCLUDED.view_all,
				hide_prices = EXCLUDED.hide_prices,
				updated_at = NOW()
		`, roleID, string(m), f.CanView, f.CanCreate, f.CanEdit, f.CanDelete, f.ViewAll, f.HidePrices)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := execBatch(ctx, db, batch); err != nil {
		return fmt.Errorf("upsert role permissions: %w", err)
	}
	return nil
}

// UpsertUserOverride writes the whole override tuple for (user, module).
func (r *PermissionRepository) UpsertUserOverride(ctx context.Context, userID string, module domain.Module, f domain.PermissionFlags) (*domain.UserPermission, error) {
	p := domain.UserPermission{UserID: userID, Module: module, PermissionFlags: f}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_permissions (user_id, module, `+flagColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, module) DO UPDATE SET
			can_view = EXCLUDED.can_view,
			can_create = EXCLUDED.can_create,
			can_edit = EXCLUDED.can_edit,
			can_delete = EXCLUDED.can_delete,
			view_all = EXCLUDED.view_all,
			hide_prices = EXCLUDED.hide_prices,
			updated_at = NOW()
		RETURNING updated_at
	`, userID, string(module), f.CanView, f.CanCreate, f.CanEdit, f.CanDelete, f.ViewAll, f.HidePrices).Scan(&p.UpdatedAt)
	if err != nil {
		if code, _ := pgErrorCode(err); code == pgForeignKeyViolation {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("upsert user override: %w", err)
	}
	return &p, nil
}

// DeleteUserOverride removes the override so the role default applies again.
func (r *PermissionRepository) DeleteUserOverride(ctx context.Context, userID string, module domain.Module) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1 AND module = $2`, userID, string(module))
	if err != nil {
		return fmt.Errorf("delete user override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOverrideNotFound
	}
	return nil
}
