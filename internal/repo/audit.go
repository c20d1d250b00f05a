package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry is one administrative change.
type AuditEntry struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   *string
	Metadata     map[string]any
	IPAddress    string
	UserAgent    string
}

// AuditRepo handles audit log storage
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// LogAction appends an entry to the audit log.
func (r *AuditRepo) LogAction(ctx context.Context, e AuditEntry) error {
	var metadataJSON []byte
	if e.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (actor_id, action, resource_type, resource_id, metadata, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ActorID, e.Action, e.ResourceType, e.ResourceID, metadataJSON, e.IPAddress, e.UserAgent)
	if err != nil {
		return fmt.Errorf("failed to log action: %w", err)
	}
	return nil
}
