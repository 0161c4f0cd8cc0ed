package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

// PostgresStore persists records in activity_records.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed activity store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Append(ctx context.Context, scope tenant.Scope, r *Record) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !scope.Owns(r.TenantID) {
		return tenant.ErrIsolationViolation
	}
	details := r.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO activity_records (id, tenant_id, actor_id, action, target, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, scope.TenantID(), r.ActorID, string(r.Action), r.Target, detailsJSON, r.CreatedAt,
	)
	return err
}

func (p *PostgresStore) List(ctx context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*Record, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var (
		rows *sql.Rows
		err  error
	)
	if cursor == nil {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, tenant_id, actor_id, action, target, details, created_at
			FROM activity_records
			WHERE tenant_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`, scope.TenantID(), limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, tenant_id, actor_id, action, target, details, created_at
			FROM activity_records
			WHERE tenant_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`, scope.TenantID(), cursor.CreatedAt, cursor.ID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var (
		out     []*Record
		tenants []string
	)
	for rows.Next() {
		r := &Record{}
		var (
			action      string
			detailsJSON []byte
		)
		if err := rows.Scan(&r.ID, &r.TenantID, &r.ActorID, &action, &r.Target, &detailsJSON, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Action = Action(action)
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &r.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		out = append(out, r)
		tenants = append(tenants, r.TenantID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tenant.CheckOwned(ctx, scope, tenants...); err != nil {
		return nil, err
	}
	return out, nil
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
