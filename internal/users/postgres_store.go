package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

// PostgresStore persists users in the users table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed user store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, tenant_id, email, name, role, status,
	COALESCE(password_hash, ''), COALESCE(external_provider, ''), COALESCE(external_subject, ''),
	COALESCE(invitation_token_hash, ''), created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, u *User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, name, role, status, password_hash,
			external_provider, external_subject, invitation_token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12)`,
		u.ID, u.TenantID, u.Email, u.Name, string(u.Role), string(u.Status), u.PasswordHash,
		u.ExternalProvider, u.ExternalSubject, u.InvitationTokenHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, scope tenant.Scope, id string) (*User, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	u, err := scanUser(p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND id = $2`, scope.TenantID(), id))
	if err != nil {
		return nil, err
	}
	if err := tenant.CheckOwned(ctx, scope, u.TenantID); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *PostgresStore) List(ctx context.Context, scope tenant.Scope) ([]*User, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY created_at, id`, scope.TenantID())
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*User
	var owners []string
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
		owners = append(owners, u.TenantID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tenant.CheckOwned(ctx, scope, owners...); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) Update(ctx context.Context, scope tenant.Scope, u *User) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE users SET name = $3, role = $4, status = $5, password_hash = NULLIF($6, ''),
			external_provider = NULLIF($7, ''), external_subject = NULLIF($8, ''),
			invitation_token_hash = NULLIF($9, ''), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`,
		scope.TenantID(), u.ID, u.Name, string(u.Role), string(u.Status), u.PasswordHash,
		u.ExternalProvider, u.ExternalSubject, u.InvitationTokenHash,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE tenant_id = $1 AND id = $2`, scope.TenantID(), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (p *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (p *PostgresStore) GetByExternal(ctx context.Context, provider, subject string) (*User, error) {
	return scanUser(p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_provider = $1 AND external_subject = $2`, provider, subject))
}

func (p *PostgresStore) GetByInvitation(ctx context.Context, tokenHash string) (*User, error) {
	return scanUser(p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE invitation_token_hash = $1`, tokenHash))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u            User
		role, status string
	)
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &role, &status,
		&u.PasswordHash, &u.ExternalProvider, &u.ExternalSubject, &u.InvitationTokenHash,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = tenant.Role(role)
	u.Status = Status(status)
	return &u, nil
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
