package main

import (
	"context"
	"fmt"

	"mebel-erp/internal/config"
	"mebel-erp/internal/database"
	"mebel-erp/internal/domain"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/repo"
	"mebel-erp/internal/service"

	"github.com/spf13/cobra"
)

const cliActor = "cli"

var resetConfirmed bool

var resetStagePermissionsCmd = &cobra.Command{
	Use:   "reset-stage-permissions",
	Short: "Replace the stage permission matrix with the defaults",
	Long: `Delete every stage permission row and install the built-in matrix in one
transaction. Every administrator edit to the matrix is lost.`,
	RunE: runResetStagePermissions,
}

func init() {
	resetStagePermissionsCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "confirm the destructive reset")
	rootCmd.AddCommand(resetStagePermissionsCmd)
}

func runResetStagePermissions(cmd *cobra.Command, args []string) error {
	if !resetConfirmed {
		return fmt.Errorf("refusing to reset the stage permission matrix without --yes")
	}
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
	ctx = logger.SetLoggerInContext(ctx, log)

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	stages := service.NewStageService(repo.NewStagePermissionRepository(pool), nil, repo.NewAuditRepo(pool))
	if err := stages.ResetToDefaults(ctx, cliActor); err != nil {
		return fmt.Errorf("failed to reset stage permissions: %w", err)
	}

	fmt.Printf("✓ Stage permission matrix reset: %d rows\n", len(domain.DefaultStagePermissions()))
	return nil
}
