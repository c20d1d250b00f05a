package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mebel-erp/internal/auth"
	"mebel-erp/internal/config"
	"mebel-erp/internal/database"
	"mebel-erp/internal/http/handler"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/permission"
	"mebel-erp/internal/ratelimit"
	"mebel-erp/internal/redact"
	"mebel-erp/internal/repo"
	"mebel-erp/internal/service"
	"mebel-erp/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the access API HTTP server with all middlewares and observability`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	log.Info(ctx, "starting mebel-erp access api",
		logger.Module("server"),
		logger.Action("start"),
		zap.String("version", "1.0.0"),
		zap.String("app_env", cfg.AppEnv),
	)

	log.Info(ctx, "running database migrations", logger.Module("server"), logger.Action("migrate"))
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var tracerProvider *sdktrace.TracerProvider
	var meterProvider *sdkmetric.MeterProvider
	var metrics *telemetry.Metrics

	if cfg.TelemetryEnabled() {
		log.Info(ctx, "initializing telemetry", logger.Module("server"), logger.Action("telemetry"),
			zap.String("endpoint", cfg.OTELExporterEndpoint))

		tp, err := telemetry.InitTracer(ctx, cfg.OTELServiceName, cfg.OTELExporterEndpoint, cfg.OTELSamplingRatio)
		if err != nil {
			log.Warn(ctx, "failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			tracerProvider = tp
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
					log.Error(shutdownCtx, "failed to shutdown tracer provider", zap.Error(err))
				}
			}()
		}

		mp, m, err := telemetry.InitMetrics(ctx, cfg.OTELServiceName, cfg.OTELExporterEndpoint)
		if err != nil {
			log.Warn(ctx, "failed to initialize metrics, continuing without metrics", zap.Error(err))
		} else {
			meterProvider = mp
			metrics = m
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := meterProvider.Shutdown(shutdownCtx); err != nil {
					log.Error(shutdownCtx, "failed to shutdown meter provider", zap.Error(err))
				}
			}()
		}
	} else {
		log.Info(ctx, "telemetry disabled (opt-in only or missing endpoint)", logger.Module("server"), logger.Action("telemetry"))
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	report, err := seedDefaults(ctx, pool, log)
	if err != nil {
		return fmt.Errorf("failed to seed defaults: %w", err)
	}
	log.Info(ctx, "defaults ensured",
		logger.Module("server"),
		logger.Action("seed"),
		zap.Int("roles_created", report.RolesCreated),
		zap.Bool("stages_seeded", report.StagesSeeded),
	)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	resolver, err := buildKeyResolver(cfg)
	if err != nil {
		return err
	}
	log.Info(ctx, "identity configured",
		logger.Module("server"),
		logger.Action("auth"),
		zap.Bool("jwt", resolver != nil),
		zap.Bool("trust_user_header", cfg.TrustUserHeader),
	)

	users := repo.NewUserRepository(pool)
	roles := repo.NewRoleRepository(pool)
	permissions := repo.NewPermissionRepository(pool)
	auditRepo := repo.NewAuditRepo(pool)
	idempotencyRepo := repo.NewIdempotencyRepo(pool)

	var cache *permission.Cache
	if cfg.PermissionCacheTTL > 0 {
		cache = permission.NewCache(redisClient, cfg.PermissionCacheTTL)
		// seeding may have added rows behind sets cached by a previous process
		if err := cache.Invalidate(ctx); err != nil {
			log.Warn(ctx, "permission cache not invalidated at startup", zap.Error(err))
		}
	}
	permResolver := permission.NewResolver(repo.NewAccessStore(users, roles, permissions), cache, metrics)

	accessService := service.NewAccessService(roles, permissions, users, auditRepo, permResolver)
	stageService := service.NewStageService(repo.NewStagePermissionRepository(pool), permResolver, auditRepo)

	var rateLimitCounter metric.Int64Counter
	if metrics != nil {
		rateLimitCounter = metrics.RateLimitRejections
	}

	r := buildRouter(RouterDeps{
		Cfg:          cfg,
		Log:          log,
		Resolver:     resolver,
		Permissions:  permResolver,
		Idempotency:  idempotencyRepo,
		RateLimiter:  ratelimit.NewRedisRateLimiter(redisClient, rateLimitCounter),
		Redaction:    redact.New(cfg.GetRedactionExtraFields()...),
		Metrics:      metrics,
		Pool:         pool,
		MeHandler:    handler.NewMeHandler(permResolver, stageService),
		UserHandler:  handler.NewUserHandler(permResolver, accessService),
		RoleHandler:  handler.NewRoleHandler(accessService),
		StageHandler: handler.NewStagePermissionHandler(stageService),
		DebugHandler: handler.NewDebugHandler(cfg.AppEnv, pool, permResolver),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info(ctx, "starting http server", logger.Module("server"), logger.Action("listen"), zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info(ctx, "shutdown signal received, starting graceful shutdown", logger.Module("server"), logger.Action("shutdown"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown error", zap.Error(err))
	}

	log.Info(shutdownCtx, "shutdown complete", logger.Module("server"), logger.Action("shutdown"))
	return nil
}

// buildKeyResolver returns nil when no JWT secret is configured, which leaves
// the trusted user header as the only identity source.
func buildKeyResolver(cfg *config.Config) (*auth.KeyResolver, error) {
	if cfg.JWTHS256Secret == "" {
		return nil, nil
	}

	secretBytes, err := base64.StdEncoding.DecodeString(cfg.JWTHS256Secret)
	if err != nil {
		return nil, fmt.Errorf("JWT_HS256_SECRET must be valid Base64-encoded: %w", err)
	}
	if len(secretBytes) < 32 {
		return nil, fmt.Errorf("JWT_HS256_SECRET decoded bytes must be at least 32 bytes (256 bits), got %d bytes", len(secretBytes))
	}

	allowedIssuers := cfg.GetAllowedIssuers()
	if len(allowedIssuers) == 0 {
		return nil, fmt.Errorf("JWT_ALLOWED_ISSUERS must contain at least one valid issuer")
	}

	keyStore := auth.NewKeyStore()
	clockSkew := time.Duration(cfg.JWTClockSkewSeconds) * time.Second
	resolver := auth.NewKeyResolver(allowedIssuers, []string{cfg.JWTAudience})
	for _, issuer := range allowedIssuers {
		keyStore.LoadHS256Key(issuer, "v1", secretBytes)
		resolver.RegisterValidator(issuer, auth.NewHS256Validator(keyStore, issuer, clockSkew))
	}
	return resolver, nil
}
