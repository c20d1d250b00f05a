package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"mebel-erp/internal/auth"
	"mebel-erp/internal/http/httperr"
	"mebel-erp/internal/observability/logger"
	"mebel-erp/internal/repo"

	"go.uber.org/zap"
)

// IdempotencyStore is satisfied by repo.IdempotencyRepo.
type IdempotencyStore interface {
	CheckKey(ctx context.Context, scope, keyHash string) (*repo.CachedResponse, error)
	StoreResult(ctx context.Context, req repo.StoredRequest) error
}

const maxIdempotencyKeyLength = 255

// IdempotencyMiddleware replays the stored response of a POST/PUT/PATCH sent again
// with the same Idempotency-Key by the same user to the same path.
// Only 2xx responses are stored.
func IdempotencyMiddleware(store IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get("Idempotency-Key")
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if len(idempotencyKey) > maxIdempotencyKeyLength {
				httperr.BadRequest400(w, ctx, httperr.ErrCodeIdempotencyKey, "idempotency key must be 255 characters or less")
				return
			}

			userID, ok := auth.UserIDFromContext(ctx)
			if !ok {
				httperr.InternalError500(w, ctx, "user_id not found in context for idempotency")
				return
			}

			scope := userID + " " + r.Method + " " + r.URL.Path
			keyHash := repo.HashKey(idempotencyKey)
			w.Header().Set("X-Idempotency-Key-Hash", keyHash)

			cached, err := store.CheckKey(ctx, scope, keyHash)
			if err != nil {
				logger.SetRootError(ctx, err)
				httperr.InternalError500(w, ctx, "failed to check idempotency key")
				return
			}

			if cached != nil {
				log.Info(ctx, "returning cached response for idempotent request",
					logger.Module("http"),
					logger.Action("idempotency_replay"),
					zap.String("key_hash", keyHash),
					zap.Int("status", cached.Status),
				)

				for k, v := range cached.Headers {
					w.Header().Set(k, v)
				}
				w.Header().Set("X-Idempotency-Replay", "true")

				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}

			var requestBody []byte
			if r.Body != nil {
				requestBody, err = io.ReadAll(r.Body)
				if err != nil {
					httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "failed to read request body")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(requestBody))
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}

			next.ServeHTTP(recorder, r)

			if recorder.statusCode < 200 || recorder.statusCode >= 300 {
				return
			}

			headers := make(map[string]string)
			for _, key := range []string{"Content-Type", "Location"} {
				if val := recorder.Header().Get(key); val != "" {
					headers[key] = val
				}
			}

			err = store.StoreResult(ctx, repo.StoredRequest{
				Scope:       scope,
				KeyHash:     keyHash,
				OriginalKey: idempotencyKey,
				Method:      r.Method,
				Path:        r.URL.Path,
				Payload:     requestBody,
				Response: repo.CachedResponse{
					Status:  recorder.statusCode,
					Body:    recorder.body.Bytes(),
					Headers: headers,
				},
			})
			if err != nil {
				// response already sent; only the replay is lost
				log.Error(ctx, "failed to store idempotency result",
					logger.Module("http"),
					logger.Action("idempotency_store"),
					zap.Error(err),
				)
			}
		})
	}
}

// responseRecorder captures response for storage
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.written {
		rr.statusCode = code
		rr.written = true
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.written {
		rr.WriteHeader(http.StatusOK)
	}
	rr.body.Write(b)
	return rr.ResponseWriter.Write(b)
}
