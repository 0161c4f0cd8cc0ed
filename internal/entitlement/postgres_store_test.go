//go:build integration

package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/idgen"
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

func TestPostgresStore_ConcurrentRecordUsage(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresStore(db)
	ledger := NewLedger(store, NewCatalogue(100, 500, 5))
	gate := NewGate(ledger)

	tenantID := insertOrg(t, db)
	_, err := ledger.Open(ctx, tenantID)
	require.NoError(t, err)

	var admitted, rejected atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gate.AdmitAndConsume(ctx, tenant.SystemScope(tenantID))
			if err == nil {
				admitted.Add(1)
			} else if errors.Is(err, ErrQuotaExceeded) {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), admitted.Load())
	assert.Equal(t, int64(15), rejected.Load())

	a, err := store.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), a.UsageCount)
}

func TestPostgresStore_PlanChangeAndLookup(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	ledger := NewLedger(NewPostgresStore(db), DefaultCatalogue())
	tenantID := insertOrg(t, db)
	_, err := ledger.Open(ctx, tenantID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		a, err := ledger.ApplyPlanChange(ctx, tenantID, TierPro, "sub_pg_1", "cus_pg_1")
		require.NoError(t, err)
		assert.Equal(t, TierPro, a.Tier)
		assert.Equal(t, StatusActive, a.Status)
		assert.Equal(t, int64(500), a.UsageLimit)
	}

	found, err := ledger.FindBySubscriptionRef(ctx, "sub_pg_1")
	require.NoError(t, err)
	assert.Equal(t, tenantID, found.TenantID)
	assert.Equal(t, "cus_pg_1", found.BillingCustomerRef)

	other := insertOrg(t, db)
	_, err = ledger.Open(ctx, other)
	require.NoError(t, err)
	_, err = ledger.ApplyPlanChange(ctx, other, TierPro, "sub_pg_1", "")
	assert.ErrorIs(t, err, ErrSubscriptionRefTaken)

	a, err := ledger.ApplyCancellation(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, a.Status)
	assert.Equal(t, int64(500), a.UsageLimit)
}

func TestPostgresStore_ApplyStatusUnlessCanceled(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresStore(db)
	ledger := NewLedger(store, DefaultCatalogue())
	tenantID := insertOrg(t, db)
	_, err := ledger.Open(ctx, tenantID)
	require.NoError(t, err)

	_, err = store.ApplyStatusUnlessCanceled(ctx, tenantID, StatusPastDue)
	require.NoError(t, err)
	_, err = store.ApplyStatus(ctx, tenantID, StatusCanceled)
	require.NoError(t, err)

	_, err = store.ApplyStatusUnlessCanceled(ctx, tenantID, StatusActive)
	assert.ErrorIs(t, err, ErrAccountCanceled)
	a, err := store.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, a.Status)

	_, err = store.ApplyStatusUnlessCanceled(ctx, idgen.New(), StatusActive)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPostgresStore_RecordUsageMissingAccount(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	_, err := NewPostgresStore(db).RecordUsage(context.Background(), idgen.New())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPostgresStore_DeletingOrgCascades(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresStore(db)
	tenantID := insertOrg(t, db)
	require.NoError(t, store.Open(ctx, &Account{TenantID: tenantID, Tier: TierBasic, Status: StatusTrial, UsageLimit: 1}))

	_, err := db.Exec(`DELETE FROM organizations WHERE id = $1`, tenantID)
	require.NoError(t, err)

	_, err = store.Get(ctx, tenantID)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
