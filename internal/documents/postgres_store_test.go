//go:build integration

package documents

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/idgen"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/testutil"
)

func insertOrg(t *testing.T, db *sql.DB) string {
	t.Helper()
	id := idgen.New()
	_, err := db.Exec(`INSERT INTO organizations (id, name) VALUES ($1, $2)`, id, "Org "+id[:8])
	require.NoError(t, err)
	return id
}

func newDoc(tenantID string, at time.Time) *Document {
	id := idgen.New()
	return &Document{
		ID:          id,
		TenantID:    tenantID,
		UploadedBy:  idgen.New(),
		Filename:    "report.txt",
		ContentType: "text/plain",
		SizeBytes:   12,
		Locator:     tenantID + "/" + id + ".txt",
		Status:      StatusUploaded,
		CreatedAt:   at,
	}
}

func TestPostgresStore_ScopedCRUD(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresStore(db)
	a, b := insertOrg(t, db), insertOrg(t, db)
	scopeA := tenant.NewScope(tenant.Principal{ID: idgen.New(), TenantID: a, Role: tenant.RoleMember})
	scopeB := tenant.NewScope(tenant.Principal{ID: idgen.New(), TenantID: b, Role: tenant.RoleAdmin})

	doc := newDoc(a, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, store.Create(ctx, scopeA, doc))
	assert.ErrorIs(t, store.Create(ctx, scopeB, newDoc(a, time.Now())), tenant.ErrIsolationViolation)

	require.NoError(t, store.SetExtraction(ctx, scopeA, doc.ID, StatusCompleted, "hello world"))
	got, err := store.Get(ctx, scopeA, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "hello world", got.Text)

	for _, id := range []string{doc.ID, "not-a-uuid", idgen.New()} {
		_, err := store.Get(ctx, scopeB, id)
		assert.ErrorIs(t, err, ErrNotFound, id)
		assert.ErrorIs(t, store.SetExtraction(ctx, scopeB, id, StatusFailed, ""), ErrNotFound, id)
		assert.ErrorIs(t, store.Delete(ctx, scopeB, id), ErrNotFound, id)
	}

	require.NoError(t, store.Delete(ctx, scopeA, doc.ID))
	_, err = store.Get(ctx, scopeA, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_ListPaginates(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresStore(db)
	a, b := insertOrg(t, db), insertOrg(t, db)
	scopeA := tenant.SystemScope(a)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Create(ctx, scopeA, newDoc(a, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, store.Create(ctx, tenant.SystemScope(b), newDoc(b, base)))

	page, err := store.List(ctx, scopeA, 3, nil)
	require.NoError(t, err)
	require.Len(t, page, 3)
	last := page[2]

	rest, err := store.List(ctx, scopeA, 10, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	for _, d := range append(page, rest...) {
		assert.Equal(t, a, d.TenantID)
	}
}
