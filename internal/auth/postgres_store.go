package auth

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore persists tokens in PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed auth store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create stores a new token
func (p *PostgresStore) Create(ctx context.Context, t *Token) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO api_tokens (token_hash, user_id, tenant_id, created_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.Hash, t.UserID, t.TenantID, t.CreatedAt, t.ExpiresAt, t.Revoked)
	return err
}

// GetByHash retrieves a live token by its hash
func (p *PostgresStore) GetByHash(ctx context.Context, hash string) (*Token, error) {
	t := &Token{Hash: hash}
	var expiresAt sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT user_id, tenant_id, created_at, expires_at, revoked
		FROM api_tokens WHERE token_hash = $1
		  AND revoked = FALSE
		  AND (expires_at IS NULL OR expires_at > NOW())
	`, hash).Scan(&t.UserID, &t.TenantID, &t.CreatedAt, &expiresAt, &t.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t.ExpiresAt = expiresAt.Time
	}
	return t, nil
}

// Revoke marks a single token revoked
func (p *PostgresStore) Revoke(ctx context.Context, hash string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE api_tokens SET revoked = TRUE WHERE token_hash = $1`, hash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// RevokeUser marks all tokens of a user revoked
func (p *PostgresStore) RevokeUser(ctx context.Context, tenantID, userID string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE api_tokens SET revoked = TRUE
		WHERE tenant_id = $1 AND user_id = $2 AND revoked = FALSE
	`, tenantID, userID)
	return err
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
