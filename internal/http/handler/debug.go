package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mebel-erp/internal/auth"
	"mebel-erp/internal/http/httperr"
	"mebel-erp/internal/observability/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool interface for database operations needed by debug endpoints
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// DebugHandler provides debug endpoints for development.
// Every endpoint answers 404 outside dev.
type DebugHandler struct {
	appEnv string
	pool   DBPool
	perms  PermissionReader
}

func NewDebugHandler(appEnv string, pool DBPool, perms PermissionReader) *DebugHandler {
	if appEnv == "" {
		appEnv = "production"
	}
	return &DebugHandler{
		appEnv: appEnv,
		pool:   pool,
		perms:  perms,
	}
}

// DebugAuthData explains how the caller was identified and what they resolved to.
type DebugAuthData struct {
	AuthMethod  string             `json:"authMethod"` // "jwt" or "header"
	UserID      string             `json:"userId"`
	Permissions *PermissionSetView `json:"permissions,omitempty"`
	HidesPrices bool               `json:"hidesPrices"`
}

func (h *DebugHandler) enabled(w http.ResponseWriter, r *http.Request) bool {
	if h.appEnv == "dev" || h.appEnv == "development" {
		return true
	}
	ctx := r.Context()
	logger.GetLogger(ctx).Warn(ctx, "debug endpoint accessed in non-dev environment",
		logger.Module("debug"),
		logger.Action("guard"),
		zap.String("app_env", h.appEnv),
	)
	http.NotFound(w, r)
	return false
}

// GET /debug/auth
func (h *DebugHandler) GetAuthDebug(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	ctx := r.Context()

	id, ok := auth.GetIdentity(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	data := &DebugAuthData{AuthMethod: id.Source, UserID: id.UserID}

	if h.perms != nil {
		set, err := h.perms.GetUserPermissions(ctx, id.UserID)
		if err != nil {
			handleServiceError(w, ctx, err)
			return
		}
		if set != nil {
			view := newPermissionSetView(set)
			data.Permissions = &view
			data.HidesPrices = set.HidesAnyPrices()
		}
	}

	writeOK(w, http.StatusOK, data)
}

// GET /debug/db/ping
func (h *DebugHandler) PingDB(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w, r) {
		return
	}
	ctx := r.Context()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	if err := h.pool.QueryRow(pingCtx, "SELECT 1").Scan(&result); err != nil {
		logFields := []zap.Field{
			logger.Module("debug"),
			logger.Action("db_ping"),
			zap.Error(err),
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			logFields = append(logFields, zap.String("pgcode", pgErr.Code))
		}
		logger.GetLogger(ctx).Error(ctx, "db_ping_failed", logFields...)

		httperr.InternalError(w, ctx)
		return
	}

	writeOK(w, http.StatusOK, map[string]int{"result": result})
}
