package repo

import (
	"context"
	"errors"
	"fmt"

	"mebel-erp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrRoleNotFound = errors.New("role not found")
	ErrRoleConflict = errors.New("role with this code or name already exists")
	ErrRoleInUse    = errors.New("role is assigned to users")
	ErrSystemRole   = errors.New("system role cannot be deleted")
)

// RoleRepository stores roles and creates their per-module permission rows.
type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

const roleColumns = `id, code, name, description, is_system, created_at, updated_at`

func scanRole(row pgx.Row) (*domain.Role, error) {
	var r domain.Role
	if err := row.Scan(&r.ID, &r.Code, &r.Name, &r.Description, &r.IsSystem, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns every role ordered by name.
func (r *RoleRepository) List(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY is_system DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := []domain.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) Get(ctx context.Context, roleID string) (*domain.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, roleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

func (r *RoleRepository) GetByCode(ctx context.Context, code string) (*domain.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("get role by code: %w", err)
	}
	return role, nil
}

// Create inserts the role and one permission row per entry of perms in a
// single transaction. Callers pass a row for every registered module.
func (r *RoleRepository) Create(ctx context.Context, role *domain.Role, perms map[domain.Module]domain.PermissionFlags) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO roles (id, code, name, description, is_system)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, role.ID, role.Code, role.Name, role.Description, role.IsSystem).Scan(&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if code, _ := pgErrorCode(err); code == pgUniqueViolation {
			return ErrRoleConflict
		}
		return fmt.Errorf("insert role: %w", err)
	}

	if err := upsertRolePermissions(ctx, tx, role.ID, perms); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit role: %w", err)
	}
	return nil
}

// EnsureSeed creates the role by code if missing and inserts permission rows
// that do not exist yet. Existing rows keep their administrator-edited values.
// Returns the role id and whether the role was created.
func (r *RoleRepository) EnsureSeed(ctx context.Context, newID string, seed domain.SeedRole) (string, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		roleID  string
		created bool
	)
	err = tx.QueryRow(ctx, `
		INSERT INTO roles (id, code, name, description, is_system)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET is_system = EXCLUDED.is_system
		RETURNING id, (xmax = 0)
	`, newID, seed.Code, seed.Name, strPtr(seed.Description), seed.IsSystem).Scan(&roleID, &created)
	if err != nil {
		return "", false, fmt.Errorf("upsert seed role %s: %w", seed.Code, err)
	}

	batch := &pgx.Batch{}
	for _, m := range domain.Modules {
		f := seed.Permissions[m]
		batch.Queue(`
			INSERT INTO role_permissions (role_id, module, can_view, can_create, can_edit, can_delete, view_all, hide_prices)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (role_id, module) DO NOTHING
		`, roleID, string(m), f.CanView, f.CanCreate, f.CanEdit, f.CanDelete, f.ViewAll, f.HidePrices)
	}
	if err := execBatch(ctx, tx, batch); err != nil {
		return "", false, fmt.Errorf("seed permissions for %s: %w", seed.Code, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, fmt.Errorf("commit seed role: %w", err)
	}
	return roleID, created, nil
}

// Delete removes a role that no user references. Its permission rows go with it.
func (r *RoleRepository) Delete(ctx context.Context, roleID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var isSystem, inUse bool
	err = tx.QueryRow(ctx, `
		SELECT is_system, EXISTS (SELECT 1 FROM users WHERE role_id = roles.id)
		FROM roles WHERE id = $1
		FOR UPDATE
	`, roleID).Scan(&isSystem, &inUse)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("load role: %w", err)
	}
	if isSystem {
		return ErrSystemRole
	}
	if inUse {
		return ErrRoleInUse
	}

	if _, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, roleID); err != nil {
		// a user may have been assigned concurrently; the FK is the final guard
		if code, _ := pgErrorCode(err); code == pgForeignKeyViolation {
			return ErrRoleInUse
		}
		return fmt.Errorf("delete role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit role delete: %w", err)
	}
	return nil
}
