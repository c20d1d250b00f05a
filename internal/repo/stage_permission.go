package repo

import (
	"context"
	"errors"
	"fmt"

	"mebel-erp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrStagePermissionNotFound = errors.New("stage permission not found")

// StagePermissionRepository stores the role x stage type matrix.
type StagePermissionRepository struct {
	pool *pgxpool.Pool
}

func NewStagePermissionRepository(pool *pgxpool.Pool) *StagePermissionRepository {
	return &StagePermissionRepository{pool: pool}
}

const stageColumns = `role, stage_type_code, can_read, can_write, can_delete, can_start, can_complete`

func scanStagePermission(row pgx.Row) (*domain.StagePermission, error) {
	var p domain.StagePermission
	if err := row.Scan(&p.Role, &p.StageTypeCode, &p.CanRead, &p.CanWrite, &p.CanDelete, &p.CanStart, &p.CanComplete); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *StagePermissionRepository) Get(ctx context.Context, role string, stageType domain.StageType) (*domain.StagePermission, error) {
	p, err := scanStagePermission(r.pool.QueryRow(ctx,
		`SELECT `+stageColumns+` FROM stage_permissions WHERE role = $1 AND stage_type_code = $2`,
		role, string(stageType),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStagePermissionNotFound
		}
		return nil, fmt.Errorf("get stage permission: %w", err)
	}
	return p, nil
}

// StageFilter narrows List; empty fields match everything.
type StageFilter struct {
	Role      string
	StageType domain.StageType
}

func (r *StagePermissionRepository) List(ctx context.Context, f StageFilter) ([]domain.StagePermission, error) {
	query := `SELECT ` + stageColumns + ` FROM stage_permissions WHERE TRUE`
	args := []any{}
	if f.Role != "" {
		args = append(args, f.Role)
		query += fmt.Sprintf(` AND role = $%d`, len(args))
	}
	if f.StageType != "" {
		args = append(args, string(f.StageType))
		query += fmt.Sprintf(` AND stage_type_code = $%d`, len(args))
	}
	query += ` ORDER BY role, stage_type_code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stage permissions: %w", err)
	}
	defer rows.Close()

	out := []domain.StagePermission{}
	for rows.Next() {
		p, err := scanStagePermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage permission: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *StagePermissionRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stage_permissions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stage permissions: %w", err)
	}
	return n, nil
}

// BulkUpsert writes every row in one transaction, replacing the whole tuple
// for each (role, stage_type_code). Any failure leaves the table unchanged.
func (r *StagePermissionRepository) BulkUpsert(ctx context.Context, perms []domain.StagePermission) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertStagePermissions(ctx, tx, perms); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit stage permissions: %w", err)
	}
	return nil
}

// ReplaceAll deletes every row and inserts perms in one transaction.
func (r *StagePermissionRepository) ReplaceAll(ctx context.Context, perms []domain.StagePermission) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM stage_permissions`); err != nil {
		return fmt.Errorf("clear stage permissions: %w", err)
	}

	if err := upsertStagePermissions(ctx, tx, perms); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit stage permission reset: %w", err)
	}
	return nil
}

func upsertStagePermissions(ctx context.Context, db dbtx, perms []domain.StagePermission) error {
	if len(perms) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range perms {
		batch.Queue(`
			INSERT INTO stage_permissions (`+stageColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (role, stage_type_code) DO UPDATE SET
				can_read = EXCLUDED.can_read,
				can_write = EXCLUDED.can_write,
				can_delete = EXCLUDED.can_delete,
				can_start = EXCLUDED.can_start,
				can_complete = EXCLUDED.can_complete,
				updated_at = NOW()
		`, p.Role, string(p.StageTypeCode), p.CanRead, p.CanWrite, p.CanDelete, p.CanStart, p.CanComplete)
	}
	if err := execBatch(ctx, db, batch); err != nil {
		return fmt.Errorf("upsert stage permissions: %w", err)
	}
	return nil
}
