package documents

import (
	"context"
	"database/sql"
	"errors"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/idgen"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

// PostgresStore persists documents in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed document store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const documentColumns = `id, tenant_id, uploaded_by, filename, content_type, size_bytes, locator,
	COALESCE(extracted_text, ''), status, created_at`

func (p *PostgresStore) Create(ctx context.Context, scope tenant.Scope, d *Document) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !scope.Owns(d.TenantID) {
		return tenant.ErrIsolationViolation
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO documents (id, tenant_id, uploaded_by, filename, content_type, size_bytes, locator, extracted_text, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)`,
		d.ID, scope.TenantID(), d.UploadedBy, d.Filename, d.ContentType, d.SizeBytes, d.Locator,
		d.Text, string(d.Status), d.CreatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, scope tenant.Scope, id string) (*Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	// A malformed id cannot match a UUID column; skip the round trip.
	if !idgen.Valid(id) {
		return nil, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE tenant_id = $1 AND id = $2`, scope.TenantID(), id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := tenant.CheckOwned(ctx, scope, d.TenantID); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *PostgresStore) List(ctx context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var (
		rows *sql.Rows
		err  error
	)
	if cursor == nil {
		rows, err = p.db.QueryContext(ctx, `
			SELECT `+documentColumns+`
			FROM documents
			WHERE tenant_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`, scope.TenantID(), limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT `+documentColumns+`
			FROM documents
			WHERE tenant_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`, scope.TenantID(), cursor.CreatedAt, cursor.ID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var (
		out     []*Document
		tenants []string
	)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
		tenants = append(tenants, d.TenantID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tenant.CheckOwned(ctx, scope, tenants...); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) SetExtraction(ctx context.Context, scope tenant.Scope, id string, status Status, text string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !idgen.Valid(id) {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE documents SET status = $3, extracted_text = NULLIF($4, '')
		WHERE tenant_id = $1 AND id = $2`, scope.TenantID(), id, string(status), text)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (p *PostgresStore) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !idgen.Valid(id) {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM documents WHERE tenant_id = $1 AND id = $2`, scope.TenantID(), id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (p *PostgresStore) Usage(ctx context.Context, scope tenant.Scope) (Usage, error) {
	if err := scope.Validate(); err != nil {
		return Usage{}, err
	}
	var u Usage
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM documents WHERE tenant_id = $1`, scope.TenantID()).Scan(&u.Count, &u.Bytes)
	return u, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*Document, error) {
	d := &Document{}
	var status string
	if err := s.Scan(&d.ID, &d.TenantID, &d.UploadedBy, &d.Filename, &d.ContentType, &d.SizeBytes,
		&d.Locator, &d.Text, &status, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Status = Status(status)
	return d, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
