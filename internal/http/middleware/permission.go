package middleware

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"mebel-erp/internal/auth"
	"mebel-erp/internal/domain"
	"mebel-erp/internal/http/httperr"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/redact"
	"mebel-erp/internal/telemetry"

	"go.uber.org/zap"
)

// PermissionChecker is the part of permission.Resolver the HTTP layer needs.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID string, module domain.Module, action domain.Action) (bool, error)
	ShouldHidePrices(ctx context.Context, userID string, module domain.Module) (bool, error)
	ShouldHidePricesAny(ctx context.Context, userID string) (bool, error)
}

// RequireModule rejects callers without action on module with 403.
// Unknown modules, unknown or inactive users and missing permission all look the same.
func RequireModule(checker PermissionChecker, module domain.Module, action domain.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID, ok := auth.UserIDFromContext(ctx)
			if !ok {
				httperr.Unauthorized401(w, ctx, httperr.ErrCodeMissingAuthorization, "authentication required")
				return
			}

			allowed, err := checker.HasPermission(ctx, userID, module, action)
			if err != nil {
				logger.SetRootError(ctx, err)
				httperr.InternalError500(w, ctx, "permission check failed")
				return
			}
			if !allowed {
				logger.GetLogger(ctx).Warn(ctx, "access denied",
					logger.Module(string(module)),
					logger.Action(string(action)),
				)
				httperr.Forbidden403(w, ctx, httperr.ErrCodeForbidden, "access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PriceRedaction masks price fields in JSON responses for callers whose
// permissions hide prices on module, or on any module. Requests without an
// identity pass through. A failed permission lookup fails the request.
func PriceRedaction(checker PermissionChecker, module domain.Module, filter *redact.Filter, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	if filter == nil {
		filter = redact.New()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID, ok := auth.UserIDFromContext(ctx)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			hide, err := shouldHide(ctx, checker, userID, module)
			if err != nil {
				logger.SetRootError(ctx, err)
				httperr.InternalError500(w, ctx, "price visibility check failed")
				return
			}
			if !hide {
				next.ServeHTTP(w, r)
				return
			}

			buf := &bufferedWriter{header: make(http.Header), status: http.StatusOK}
			next.ServeHTTP(buf, r)

			body := buf.body.Bytes()
			if len(body) > 0 && looksJSON(buf.header.Get("Content-Type"), body) {
				redacted, err := filter.RedactJSON(body)
				if err != nil {
					logger.GetLogger(ctx).Error(ctx, "response withheld: redaction failed",
						logger.Module(string(module)),
						logger.Action("redact"),
						zap.Error(err),
					)
					logger.SetRootError(ctx, err)
					httperr.InternalError500(w, ctx, "response could not be redacted")
					return
				}
				body = redacted
				if buf.header.Get("Content-Type") == "" {
					buf.header.Set("Content-Type", "application/json")
				}
				metrics.RecordRedaction(ctx, string(module))
			}

			for k, v := range buf.header {
				w.Header()[k] = v
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(buf.status)
			_, _ = w.Write(body)
		})
	}
}

func shouldHide(ctx context.Context, checker PermissionChecker, userID string, module domain.Module) (bool, error) {
	hide, err := checker.ShouldHidePrices(ctx, userID, module)
	if err != nil || hide {
		return hide, err
	}
	return checker.ShouldHidePricesAny(ctx, userID)
}

func isJSON(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "application/json") || strings.Contains(ct, "+json")
}

// looksJSON treats an untyped body as JSON when it starts like an object or array.
func looksJSON(contentType string, body []byte) bool {
	if contentType != "" {
		return isJSON(contentType)
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// bufferedWriter holds the whole response until it has been redacted.
type bufferedWriter struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) WriteHeader(code int) {
	if b.wroteHeader {
		return
	}
	b.status = code
	b.wroteHeader = true
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		b.WriteHeader(http.StatusOK)
	}
	return b.body.Write(p)
}
