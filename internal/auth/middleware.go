package auth

import (
	"context"
	"net/http"
	"strings"

	"mebel-erp/internal/http/httperr"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/observability/requestid"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const identityContextKey contextKey = "identity"

// UserHeader carries the caller's user id when the frontend is trusted to set it.
const UserHeader = "X-User-Id"

// Identity sources.
const (
	SourceJWT    = "jwt"
	SourceHeader = "header"
)

// Identity is the authenticated caller. Only the user id is trusted; role and
// permissions are always resolved from storage.
type Identity struct {
	UserID string
	Source string
}

// mapAuthErrorToCode maps auth failure reasons to HTTP error codes
func mapAuthErrorToCode(authErr *AuthError) string {
	if authErr == nil {
		return httperr.ErrCodeInvalidToken
	}

	switch authErr.Reason {
	case AuthFailureMissingAuthorization:
		return httperr.ErrCodeMissingAuthorization
	case AuthFailureInvalidScheme:
		return httperr.ErrCodeInvalidScheme
	case AuthFailureInvalidSignature:
		return httperr.ErrCodeInvalidSignature
	case AuthFailureTokenExpired:
		return httperr.ErrCodeTokenExpired
	case AuthFailureInvalidIssuer:
		return httperr.ErrCodeInvalidIssuer
	case AuthFailureInvalidAudience:
		return httperr.ErrCodeInvalidAudience
	default:
		return httperr.ErrCodeInvalidToken
	}
}

// IdentityMiddleware authenticates the caller from a Bearer JWT or, when
// trustUserHeader is set, from the X-User-Id header. A Bearer token always wins.
// resolver may be nil when no JWT secret is configured.
func IdentityMiddleware(resolver *KeyResolver, trustUserHeader bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" && trustUserHeader {
				userID := strings.TrimSpace(r.Header.Get(UserHeader))
				if userID != "" {
					if !requestid.Accept(userID) {
						httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "invalid user header")
						return
					}
					next.ServeHTTP(w, r.WithContext(withIdentity(ctx, Identity{UserID: userID, Source: SourceHeader})))
					return
				}
			}

			if authHeader == "" {
				log.Warn(ctx, "authentication failed",
					logger.Module("auth"),
					logger.Action("identity"),
					zap.String("auth_failure_reason", string(AuthFailureMissingAuthorization)),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				httperr.Unauthorized401(w, ctx, httperr.ErrCodeMissingAuthorization, "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || resolver == nil {
				log.Warn(ctx, "authentication failed",
					logger.Module("auth"),
					logger.Action("identity"),
					zap.String("auth_failure_reason", string(AuthFailureInvalidScheme)),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidScheme, "invalid authorization scheme, expected Bearer")
				return
			}

			tokenString := parts[1]
			claims, err := resolver.Resolve(ctx, tokenString)
			if err != nil {
				authErr, _ := IsAuthError(err)
				reason := AuthFailureUnknown
				if authErr != nil {
					reason = authErr.Reason
				}
				log.Warn(ctx, "authentication failed",
					logger.Module("auth"),
					logger.Action("identity"),
					zap.String("auth_failure_reason", string(reason)),
					zap.String("token_prefix", maskToken(tokenString)),
					zap.Error(err),
				)
				httperr.Unauthorized401(w, ctx, mapAuthErrorToCode(authErr), "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(ctx, Identity{UserID: claims.UserID, Source: SourceJWT})))
		})
	}
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("user_id", id.UserID))

	ctx = context.WithValue(ctx, identityContextKey, &id)
	return logger.SetUserIDInContext(ctx, id.UserID)
}

// GetIdentity returns the authenticated caller, if any.
func GetIdentity(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok && id != nil && id.UserID != ""
}

// UserIDFromContext is a shortcut for GetIdentity(ctx).UserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok {
		return "", false
	}
	return id.UserID, true
}
