package main

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"mebel-erp/internal/auth"
	"mebel-erp/internal/config"
	"mebel-erp/internal/domain"
	"mebel-erp/internal/http/docs"
	"mebel-erp/internal/http/handler"
	"mebel-erp/internal/http/httperr"
	"mebel-erp/internal/http/middleware"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/redact"
	"mebel-erp/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PermissionService is satisfied by permission.Resolver.
type PermissionService interface {
	handler.PermissionReader
	middleware.PermissionChecker
}

// Pinger is the readiness probe target, normally *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds everything buildRouter wires. Nil optional dependencies
// switch their feature off.
type RouterDeps struct {
	Cfg         *config.Config
	Log         *logger.Logger
	Resolver    *auth.KeyResolver
	Permissions PermissionService
	Idempotency middleware.IdempotencyStore
	RateLimiter middleware.RateLimiter
	Redaction   *redact.Filter
	Metrics     *telemetry.Metrics
	Pool        Pinger

	MeHandler    *handler.MeHandler
	UserHandler  *handler.UserHandler
	RoleHandler  *handler.RoleHandler
	StageHandler *handler.StagePermissionHandler
	DebugHandler *handler.DebugHandler
}

func buildRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(deps.Log))
	r.Use(middleware.RecoveryMiddleware(deps.Log))
	r.Use(telemetry.OTelMiddleware(deps.Cfg.OTELServiceName))
	if deps.Metrics != nil {
		r.Use(telemetry.MetricsMiddleware(deps.Metrics))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/ready", readyHandler(deps))
	r.Get("/metrics", metricsHandler(deps.Cfg.MetricsToken))

	r.Get("/openapi.yaml", docs.OpenAPIHandler().ServeHTTP)
	r.Get("/docs", docs.ScalarDocsHandler("/openapi.yaml").ServeHTTP)

	identity := auth.IdentityMiddleware(deps.Resolver, deps.Cfg.TrustUserHeader)

	// Debug routes (dev-only)
	if deps.Cfg.IsDev() && deps.DebugHandler != nil {
		r.Route("/debug", func(r chi.Router) {
			r.With(identity).Get("/auth", deps.DebugHandler.GetAuthDebug)
			r.Get("/db/ping", deps.DebugHandler.PingDB)
		})
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(identity)
		if deps.RateLimiter != nil {
			r.Use(middleware.RateLimitMiddleware(deps.RateLimiter, deps.Cfg.RateLimitPerUserPerMin))
		}

		gate := func(m domain.Module, a domain.Action) func(http.Handler) http.Handler {
			return middleware.RequireModule(deps.Permissions, m, a)
		}
		idempotent := func(next http.Handler) http.Handler {
			if deps.Idempotency == nil {
				return next
			}
			return middleware.IdempotencyMiddleware(deps.Idempotency)(next)
		}

		if deps.MeHandler != nil {
			r.Route("/me", func(r chi.Router) {
				r.Get("/permissions", deps.MeHandler.GetPermissions)
				r.Get("/permissions/{module}", deps.MeHandler.GetModulePermissions)
				r.Get("/stage-permissions/{stageType}/{action}", deps.MeHandler.CheckStageAction)
			})
		}

		if deps.UserHandler != nil {
			r.Route("/users/{userId}", func(r chi.Router) {
				r.With(gate(domain.ModuleSettings, domain.ActionEdit)).Patch("/", deps.UserHandler.UpdateUser)
				r.With(gate(domain.ModuleSettings, domain.ActionView)).Get("/overrides", deps.UserHandler.ListOverrides)
				r.Route("/permissions", func(r chi.Router) {
					r.With(gate(domain.ModuleSettings, domain.ActionView)).Get("/", deps.UserHandler.GetPermissions)
					r.Route("/{module}", func(r chi.Router) {
						r.With(gate(domain.ModuleSettings, domain.ActionView)).Get("/", deps.UserHandler.GetModulePermissions)
						r.With(gate(domain.ModuleSettings, domain.ActionEdit)).Put("/", deps.UserHandler.PutOverride)
						r.With(gate(domain.ModuleSettings, domain.ActionEdit)).Delete("/", deps.UserHandler.DeleteOverride)
						r.With(gate(domain.ModuleSettings, domain.ActionView)).Get("/{action}", deps.UserHandler.HasPermission)
					})
				})
			})
		}

		if deps.RoleHandler != nil {
			r.Route("/roles", func(r chi.Router) {
				r.With(gate(domain.ModuleSettings, domain.ActionView)).Get("/", deps.RoleHandler.ListRoles)
				r.With(gate(domain.ModuleSettings, domain.ActionCreate)).Post("/", deps.RoleHandler.CreateRole)
				r.Route("/{roleId}", func(r chi.Router) {
					r.With(gate(domain.ModuleSettings, domain.ActionView)).Get("/", deps.RoleHandler.GetRole)
					r.With(gate(domain.ModuleSettings, domain.ActionDelete)).Delete("/", deps.RoleHandler.DeleteRole)
					r.With(gate(domain.ModuleSettings, domain.ActionEdit)).Put("/permissions", deps.RoleHandler.UpdatePermissions)
				})
			})
		}

		// Permission payloads carry hide_prices keys, which the deny-list would mask,
		// so redaction only wraps the stage matrix.
		if deps.StageHandler != nil {
			redactedRoute(r, deps, "/stage-permissions", domain.ModuleProjects, func(r chi.Router) {
				r.With(gate(domain.ModuleProjects, domain.ActionView)).Get("/", deps.StageHandler.List)
				r.With(gate(domain.ModuleSettings, domain.ActionEdit), idempotent).Put("/", deps.StageHandler.BulkSave)
				r.With(gate(domain.ModuleSettings, domain.ActionEdit), idempotent).Post("/:reset", deps.StageHandler.Reset)
				r.With(gate(domain.ModuleProjects, domain.ActionView)).Get("/{role}/{stageType}", deps.StageHandler.Get)
			})
		}
	})

	return r
}

// redactedRoute mounts a route group whose JSON responses are price-redacted
// for callers that hide prices on module.
func redactedRoute(r chi.Router, deps RouterDeps, pattern string, module domain.Module, fn func(r chi.Router)) {
	r.Route(pattern, func(r chi.Router) {
		r.Use(middleware.PriceRedaction(deps.Permissions, module, deps.Redaction, deps.Metrics))
		fn(r)
	})
}

func readyHandler(deps RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.Pool == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ready","note":"pool is nil"}`))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := deps.Pool.Ping(ctx); err != nil {
			deps.Log.Error(ctx, "readiness check failed: database unavailable",
				logger.Module("http"),
				logger.Action("ready"),
				zap.Error(err),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"error","message":"database unavailable"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

// metricsHandler exposes the default Prometheus registry. When token is set the
// caller must send it as X-Metrics-Token or a Bearer token.
func metricsHandler(token string) http.HandlerFunc {
	prom := promhttp.Handler()
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			got := r.Header.Get("X-Metrics-Token")
			if got == "" {
				got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httperr.Unauthorized401(w, r.Context(), httperr.ErrCodeInvalidToken, "unauthorized")
				return
			}
		}
		prom.ServeHTTP(w, r)
	}
}
