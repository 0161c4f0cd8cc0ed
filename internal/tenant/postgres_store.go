package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresStore persists tenants in the organizations table. Deleting a row
// cascades to every tenant-owned table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tenant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tenantColumns = `id, name, COALESCE(domain, ''), is_active, settings, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, t *Tenant) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, domain, is_active, settings, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`,
		t.ID, t.Name, t.Domain, t.Active, settings, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, scope Scope) (*Tenant, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	t, err := scanTenant(p.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM organizations WHERE id = $1`, scope.TenantID()))
	if err != nil {
		return nil, err
	}
	if err := CheckOwned(ctx, scope, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *PostgresStore) UpdateProfile(ctx context.Context, scope Scope, u ProfileUpdate) (*Tenant, []string, error) {
	if err := scope.Validate(); err != nil {
		return nil, nil, err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := scanTenant(tx.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM organizations WHERE id = $1 FOR UPDATE`, scope.TenantID()))
	if err != nil {
		return nil, nil, err
	}
	changed, err := u.Apply(t)
	if err != nil {
		return nil, nil, err
	}
	if len(changed) == 0 {
		return t, nil, nil
	}

	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal settings: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `
		UPDATE organizations SET name = $2, domain = NULLIF($3, ''), settings = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Name, t.Domain, settings,
	).Scan(&t.UpdatedAt); err != nil {
		return nil, nil, fmt.Errorf("update tenant: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return t, changed, nil
}

func (p *PostgresStore) Delete(ctx context.Context, scope Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, scope.TenantID())
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTenantNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*Tenant, error) {
	var (
		t        Tenant
		settings []byte
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.Active, &settings, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	t.Settings = DefaultSettings()
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}
	return &t, nil
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
