package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mebel-erp/internal/http/httperr"
	"mebel-erp/internal/observability/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver() *KeyResolver {
	keyStore := NewKeyStore()
	keyStore.LoadHS256Key(testIssuer, "v1", []byte(testSecret))
	resolver := NewKeyResolver([]string{testIssuer}, []string{testAudience})
	resolver.RegisterValidator(testIssuer, NewHS256Validator(keyStore, testIssuer, 60*time.Second))
	return resolver
}

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		if logger.GetUserIDFromContext(r.Context()) != id.UserID {
			w.WriteHeader(http.StatusConflict)
			return
		}
		_, _ = w.Write([]byte(id.Source + ":" + id.UserID))
	})
}

func TestIdentityMiddleware(t *testing.T) {
	valid := createTestToken(testSecret, &UserClaims{UserID: "u-1"}, time.Now().Add(time.Hour))
	expired := createTestToken(testSecret, &UserClaims{UserID: "u-1"}, time.Now().Add(-time.Hour))

	tests := []struct {
		name        string
		trustHeader bool
		headers     map[string]string
		wantStatus  int
		wantBody    string
		wantCode    string
	}{
		{
			name:       "valid bearer",
			headers:    map[string]string{"Authorization": "Bearer " + valid},
			wantStatus: http.StatusOK,
			wantBody:   "jwt:u-1",
		},
		{
			name:       "missing authorization",
			wantStatus: http.StatusUnauthorized,
			wantCode:   httperr.ErrCodeMissingAuthorization,
		},
		{
			name:       "basic scheme",
			headers:    map[string]string{"Authorization": "Basic abc"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   httperr.ErrCodeInvalidScheme,
		},
		{
			name:       "expired token",
			headers:    map[string]string{"Authorization": "Bearer " + expired},
			wantStatus: http.StatusUnauthorized,
			wantCode:   httperr.ErrCodeTokenExpired,
		},
		{
			name:       "user header ignored when not trusted",
			headers:    map[string]string{UserHeader: "u-2"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   httperr.ErrCodeMissingAuthorization,
		},
		{
			name:        "trusted user header",
			trustHeader: true,
			headers:     map[string]string{UserHeader: "u-2"},
			wantStatus:  http.StatusOK,
			wantBody:    "header:u-2",
		},
		{
			name:        "bearer wins over header",
			trustHeader: true,
			headers:     map[string]string{"Authorization": "Bearer " + valid, UserHeader: "u-2"},
			wantStatus:  http.StatusOK,
			wantBody:    "jwt:u-1",
		},
		{
			name:        "header with spaces rejected",
			trustHeader: true,
			headers:     map[string]string{UserHeader: "u 2"},
			wantStatus:  http.StatusUnauthorized,
			wantCode:    httperr.ErrCodeInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := IdentityMiddleware(newTestResolver(), tt.trustHeader)(identityEcho())

			req := httptest.NewRequest(http.MethodGet, "/v1/me/permissions", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			req = req.WithContext(logger.SetLoggerInContext(req.Context(), logger.Nop()))
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			if tt.wantCode != "" {
				var resp httperr.ErrorResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestIdentityMiddleware_NoResolver(t *testing.T) {
	h := IdentityMiddleware(nil, false)(identityEcho())

	req := httptest.NewRequest(http.MethodGet, "/v1/me/permissions", nil)
	req.Header.Set("Authorization", "Bearer x.y.z")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSetIdentityForTesting(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := SetIdentityForTesting(req.Context(), "u-9")

	id, ok := UserIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u-9", id)

	_, ok = UserIDFromContext(req.Context())
	assert.False(t, ok)
}
