package summaries

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/idgen"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

// PostgresStore persists summaries in PostgreSQL. Rows go away with their
// document through ON DELETE CASCADE.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed summary store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const summaryColumns = `id, tenant_id, document_id, created_by, style, content, tokens_used, created_at`

func (p *PostgresStore) Create(ctx context.Context, scope tenant.Scope, s *Summary) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !scope.Owns(s.TenantID) {
		return tenant.ErrIsolationViolation
	}
	// The document must belong to the same tenant; the subselect makes a
	// foreign document id insert nothing.
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO summaries (id, tenant_id, document_id, created_by, style, content, tokens_used, created_at)
		SELECT $1, $2, d.id, $4, $5, $6, $7, $8
		FROM documents d
		WHERE d.tenant_id = $2 AND d.id = $3`,
		s.ID, scope.TenantID(), s.DocumentID, s.CreatedBy, string(s.Style), s.Content, s.TokensUsed, s.CreatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (p *PostgresStore) CountByDay(ctx context.Context, scope tenant.Scope, since time.Time) ([]DayCount, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, COUNT(*)
		FROM summaries
		WHERE tenant_id = $1 AND created_at >= $2
		GROUP BY day
		ORDER BY day`, scope.TenantID(), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, err
		}
		dc.Day = time.Date(dc.Day.Year(), dc.Day.Month(), dc.Day.Day(), 0, 0, 0, 0, time.UTC)
		out = append(out, dc)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Get(ctx context.Context, scope tenant.Scope, id string) (*Summary, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if !idgen.Valid(id) {
		return nil, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `
		SELECT `+summaryColumns+`
		FROM summaries
		WHERE tenant_id = $1 AND id = $2`, scope.TenantID(), id)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := tenant.CheckOwned(ctx, scope, s.TenantID); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresStore) List(ctx context.Context, scope tenant.Scope, limit int, cursor *pagination.Cursor) ([]*Summary, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if cursor == nil {
		return p.query(ctx, scope, `
			SELECT `+summaryColumns+`
			FROM summaries
			WHERE tenant_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`, scope.TenantID(), limit)
	}
	return p.query(ctx, scope, `
		SELECT `+summaryColumns+`
		FROM summaries
		WHERE tenant_id = $1 AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, scope.TenantID(), cursor.CreatedAt, cursor.ID, limit)
}

func (p *PostgresStore) ListByDocument(ctx context.Context, scope tenant.Scope, documentID string) ([]*Summary, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if !idgen.Valid(documentID) {
		return nil, nil
	}
	return p.query(ctx, scope, `
		SELECT `+summaryColumns+`
		FROM summaries
		WHERE tenant_id = $1 AND document_id = $2
		ORDER BY created_at DESC, id DESC`, scope.TenantID(), documentID)
}

func (p *PostgresStore) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !idgen.Valid(id) {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM summaries WHERE tenant_id = $1 AND id = $2`, scope.TenantID(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteForDocument(ctx context.Context, scope tenant.Scope, documentID string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if !idgen.Valid(documentID) {
		return nil
	}
	_, err := p.db.ExecContext(ctx, `DELETE FROM summaries WHERE tenant_id = $1 AND document_id = $2`, scope.TenantID(), documentID)
	return err
}

func (p *PostgresStore) query(ctx context.Context, scope tenant.Scope, q string, args ...any) ([]*Summary, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var (
		out     []*Summary
		tenants []string
	)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		tenants = append(tenants, s.TenantID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tenant.CheckOwned(ctx, scope, tenants...); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(sc scanner) (*Summary, error) {
	s := &Summary{}
	var style string
	if err := sc.Scan(&s.ID, &s.TenantID, &s.DocumentID, &s.CreatedBy, &style, &s.Content, &s.TokensUsed, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Style = Style(style)
	return s, nil
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
