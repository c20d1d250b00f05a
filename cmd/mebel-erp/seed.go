package main

import (
	"context"
	"errors"
	"fmt"

	"mebel-erp/internal/config"
	"mebel-erp/internal/database"
	"mebel-erp/internal/domain"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/permission"
	"mebel-erp/internal/repo"
	"mebel-erp/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedAdminUsername string
	seedAdminID       string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install built-in roles and the default stage matrix",
	Long: `Create missing built-in roles and their permission rows, and install the
default stage permission matrix when the table is empty. Rows an administrator
has edited are left alone. Optionally bootstraps an administrator user.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminUsername, "admin-username", "", "create an active admin user with this username")
	seedCmd.Flags().StringVar(&seedAdminID, "admin-id", "", "id for the admin user (defaults to a new UUID)")
	rootCmd.AddCommand(seedCmd)
}

type seedReport struct {
	RolesCreated int
	StagesSeeded bool
	AdminRoleID  string
}

// seedDefaults is safe to run on every start.
func seedDefaults(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) (*seedReport, error) {
	roles := repo.NewRoleRepository(pool)
	report := &seedReport{}

	for _, seed := range domain.DefaultRoles() {
		id, created, err := roles.EnsureSeed(ctx, uuid.NewString(), seed)
		if err != nil {
			return nil, err
		}
		if created {
			report.RolesCreated++
			log.Info(ctx, "seed role created",
				logger.Module("seed"),
				logger.Action("role"),
				zap.String("role_code", seed.Code),
				zap.String("role_id", id),
			)
		}
		if seed.Code == domain.RoleCodeAdmin {
			report.AdminRoleID = id
		}
	}

	// seeding never resolves users, so no permission source is needed
	stages := service.NewStageService(repo.NewStagePermissionRepository(pool), nil, repo.NewAuditRepo(pool))
	seeded, err := stages.SeedIfEmpty(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed stage permissions: %w", err)
	}
	report.StagesSeeded = seeded

	return report, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.OTELServiceName, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	report, err := seedDefaults(ctx, pool, log)
	if err != nil {
		return fmt.Errorf("failed to seed: %w", err)
	}
	fmt.Printf("✓ Roles created: %d, stage matrix seeded: %t\n", report.RolesCreated, report.StagesSeeded)

	if seedAdminUsername != "" {
		id := seedAdminID
		if id == "" {
			id = uuid.NewString()
		}
		u := &domain.User{ID: id, Username: seedAdminUsername, IsActive: true, RoleID: &report.AdminRoleID}
		switch err := repo.NewUserRepository(pool).Create(ctx, u); {
		case errors.Is(err, repo.ErrUserConflict):
			fmt.Printf("✓ Admin user %q already exists, skipped\n", seedAdminUsername)
		case err != nil:
			return fmt.Errorf("failed to create admin user: %w", err)
		default:
			fmt.Printf("✓ Admin user %q created with id %s\n", u.Username, u.ID)
		}
	}

	if cfg.PermissionCacheTTL > 0 {
		if err := invalidatePermissionCache(ctx, cfg); err != nil {
			log.Warn(ctx, "permission cache not invalidated after seed",
				logger.Module("seed"),
				logger.Action("invalidate_cache"),
				zap.Error(err),
			)
		}
	}
	return nil
}

func invalidatePermissionCache(ctx context.Context, cfg *config.Config) error {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	return permission.NewCache(client, cfg.PermissionCacheTTL).Invalidate(ctx)
}
