package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepo stores responses of requests sent with an Idempotency-Key.
type IdempotencyRepo struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepo(pool *pgxpool.Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// CachedResponse represents a cached response from an idempotent request
type CachedResponse struct {
	Status  int
	Body    json.RawMessage
	Headers map[string]string
}

// StoredRequest is what gets persisted after the first execution.
type StoredRequest struct {
	Scope       string
	KeyHash     string
	OriginalKey string
	Method      string
	Path        string
	Payload     json.RawMessage
	Response    CachedResponse
}

// HashKey returns the hex SHA-256 of an idempotency key.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// CheckKey returns the stored response for (scope, keyHash), or nil when none is live.
func (r *IdempotencyRepo) CheckKey(ctx context.Context, scope, keyHash string) (*CachedResponse, error) {
	var (
		status      int
		body        json.RawMessage
		headersJSON []byte
	)

	err := r.pool.QueryRow(ctx, `
		SELECT response_status, response_body, response_headers
		FROM idempotency_keys
		WHERE scope = $1 AND key_hash = $2 AND expires_at > NOW()
	`, scope, keyHash).Scan(&status, &body, &headersJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	var headers map[string]string
	if headersJSON != nil {
		if err := json.Unmarshal(headersJSON, &headers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
		}
	}

	return &CachedResponse{Status: status, Body: body, Headers: headers}, nil
}

// StoreResult persists the first response for 24 hours. A concurrent duplicate is ignored.
func (r *IdempotencyRepo) StoreResult(ctx context.Context, req StoredRequest) error {
	headersJSON, err := json.Marshal(req.Response.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (
			key_hash, scope, original_key, request_method, request_path,
			request_payload, response_status, response_body, response_headers, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW() + INTERVAL '24 hours')
		ON CONFLICT (scope, key_hash) DO NOTHING
	`, req.KeyHash, req.Scope, req.OriginalKey, req.Method, req.Path,
		nullJSON(req.Payload), req.Response.Status, nullJSON(req.Response.Body), headersJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to store idempotency result: %w", err)
	}
	return nil
}

// CleanupExpired removes expired idempotency keys
func (r *IdempotencyRepo) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired keys: %w", err)
	}
	return result.RowsAffected(), nil
}

// nullJSON stores empty or non-JSON bodies as SQL NULL so the JSONB column accepts them.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return []byte(raw)
}
