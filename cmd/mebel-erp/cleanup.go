package main

import (
	"context"
	"fmt"

	"mebel-erp/internal/config"
	"mebel-erp/internal/database"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/repo"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Cleanup expired idempotency keys",
	Long:  `Remove idempotency keys older than 24 hours from the database`,
	RunE:  runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
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

	log.Info(ctx, "starting idempotency keys cleanup", logger.Module("cli"), logger.Action("cleanup"))

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	rowsDeleted, err := repo.NewIdempotencyRepo(pool).CleanupExpired(ctx)
	if err != nil {
		log.Error(ctx, "cleanup failed", logger.Module("cli"), logger.Action("cleanup"), zap.Error(err))
		return fmt.Errorf("failed to cleanup expired keys: %w", err)
	}

	log.Info(ctx, "cleanup completed",
		logger.Module("cli"),
		logger.Action("cleanup"),
		zap.Int64("rows_deleted", rowsDeleted),
	)
	fmt.Printf("✓ Cleanup completed: %d expired keys removed\n", rowsDeleted)

	return nil
}
