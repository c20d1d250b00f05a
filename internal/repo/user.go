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
	ErrUserNotFound = errors.New("user not found")
	ErrUserConflict = errors.New("user with this username already exists")
)

// UserRepository reads and updates the access-relevant part of user accounts.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, username, full_name, is_active, role_id, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.IsActive, &u.RoleID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Get(ctx context.Context, userID string) (*domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Create inserts a user. Used by the seed command to bootstrap an administrator.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, full_name, is_active, role_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, u.ID, u.Username, u.FullName, u.IsActive, u.RoleID).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		switch code, _ := pgErrorCode(err); code {
		case pgUniqueViolation:
			return ErrUserConflict
		case pgForeignKeyViolation:
			return ErrRoleNotFound
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserUpdate is a partial update; nil fields are left unchanged.
// ClearRole detaches the user from any role.
type UserUpdate struct {
	IsActive  *bool
	RoleID    *string
	ClearRole bool
}

func (r *UserRepository) Update(ctx context.Context, userID string, upd UserUpdate) (*domain.User, error) {
	query := `UPDATE users SET updated_at = NOW()`
	args := []any{}
	argIdx := 1

	if upd.IsActive != nil {
		query += fmt.Sprintf(`, is_active = $%d`, argIdx)
		args = append(args, *upd.IsActive)
		argIdx++
	}
	if upd.ClearRole {
		query += `, role_id = NULL`
	} else if upd.RoleID != nil {
		query += fmt.Sprintf(`, role_id = $%d`, argIdx)
		args = append(args, *upd.RoleID)
		argIdx++
	}

	query += fmt.Sprintf(` WHERE id = $%d RETURNING `+userColumns, argIdx)
	args = append(args, userID)

	u, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if code, _ := pgErrorCode(err); code == pgForeignKeyViolation {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}
