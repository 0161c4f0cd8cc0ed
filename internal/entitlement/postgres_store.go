package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/retry"
)

// PostgresStore persists ledger rows in the entitlements table.
//
// RecordUsage is one conditional UPDATE: Postgres takes the row lock, then
// re-evaluates usage_count < usage_limit against the committed row before
// writing, so concurrent callers on one tenant serialize on that row and
// nothing else.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `tenant_id, plan_tier, lifecycle_status, usage_limit, usage_count,
	billing_customer_ref, subscription_ref, updated_at`

func (p *PostgresStore) Open(ctx context.Context, a *Account) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO entitlements (tenant_id, plan_tier, lifecycle_status, usage_limit, usage_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.TenantID, string(a.Tier), string(a.Status), a.UsageLimit, a.UsageCount, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAccountExists
		}
		return fmt.Errorf("open account: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, tenantID string) (*Account, error) {
	return scanAccount(p.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM entitlements WHERE tenant_id = $1`, tenantID))
}

func (p *PostgresStore) FindBySubscriptionRef(ctx context.Context, ref string) (*Account, error) {
	return scanAccount(p.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM entitlements WHERE subscription_ref = $1`, ref))
}

func (p *PostgresStore) RecordUsage(ctx context.Context, tenantID string) (*Account, error) {
	a, err := scanAccount(p.db.QueryRowContext(ctx, `
		UPDATE entitlements
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE tenant_id = $1 AND usage_count < usage_limit
		RETURNING `+accountColumns, tenantID))
	if !errors.Is(err, ErrAccountNotFound) {
		return a, err
	}

	// No row updated: either the tenant has no ledger row or it is at its limit.
	var exists bool
	if err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM entitlements WHERE tenant_id = $1)`, tenantID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("record usage: %w", err)
	}
	if exists {
		return nil, ErrQuotaExceeded
	}
	return nil, ErrAccountNotFound
}

// ApplyPlanChange locks the row for the duration of the assignment so a
// concurrent RecordUsage on the same tenant lands entirely before or after
// it. Serialization failures and deadlocks are retried; the statement is
// idempotent.
func (p *PostgresStore) ApplyPlanChange(ctx context.Context, tenantID string, change PlanChange) (*Account, error) {
	var out *Account
	err := retry.DoIf(ctx, 3, 20*time.Millisecond, isRetryableTxError, func() error {
		a, err := p.applyPlanChangeTx(ctx, tenantID, change)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

func (p *PostgresStore) applyPlanChangeTx(ctx context.Context, tenantID string, change PlanChange) (*Account, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	err = tx.QueryRowContext(ctx,
		`SELECT tenant_id FROM entitlements WHERE tenant_id = $1 FOR UPDATE`, tenantID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	a, err := scanAccount(tx.QueryRowContext(ctx, `
		UPDATE entitlements
		SET plan_tier = $2,
			usage_limit = $3,
			lifecycle_status = 'active',
			subscription_ref = COALESCE(NULLIF($4, ''), subscription_ref),
			billing_customer_ref = COALESCE(billing_customer_ref, NULLIF($5, '')),
			updated_at = NOW()
		WHERE tenant_id = $1
		RETURNING `+accountColumns,
		tenantID, string(change.Tier), change.Limit, change.SubscriptionRef, change.CustomerRef))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSubscriptionRefTaken
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

func (p *PostgresStore) ApplyStatus(ctx context.Context, tenantID string, status Status) (*Account, error) {
	return scanAccount(p.db.QueryRowContext(ctx, `
		UPDATE entitlements SET lifecycle_status = $2, updated_at = NOW()
		WHERE tenant_id = $1
		RETURNING `+accountColumns, tenantID, string(status)))
}

func (p *PostgresStore) ApplyStatusUnlessCanceled(ctx context.Context, tenantID string, status Status) (*Account, error) {
	a, err := scanAccount(p.db.QueryRowContext(ctx, `
		UPDATE entitlements SET lifecycle_status = $2, updated_at = NOW()
		WHERE tenant_id = $1 AND lifecycle_status <> 'canceled'
		RETURNING `+accountColumns, tenantID, string(status)))
	if !errors.Is(err, ErrAccountNotFound) {
		return a, err
	}
	// No row matched: either the tenant is unknown or the row is canceled.
	if _, getErr := p.Get(ctx, tenantID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrAccountCanceled
}

func (p *PostgresStore) SetBillingRef(ctx context.Context, tenantID, customerRef string) (*Account, error) {
	a, err := scanAccount(p.db.QueryRowContext(ctx, `
		UPDATE entitlements
		SET billing_customer_ref = COALESCE(billing_customer_ref, $2), updated_at = NOW()
		WHERE tenant_id = $1
		RETURNING `+accountColumns, tenantID, customerRef))
	if err != nil && isUniqueViolation(err) {
		return nil, fmt.Errorf("set billing ref: customer already bound: %w", err)
	}
	return a, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	a := &Account{}
	var (
		tier, status         string
		customerRef, subsRef sql.NullString
	)
	err := row.Scan(&a.TenantID, &tier, &status, &a.UsageLimit, &a.UsageCount,
		&customerRef, &subsRef, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Tier = Tier(tier)
	a.Status = Status(status)
	a.BillingCustomerRef = customerRef.String
	a.SubscriptionRef = subsRef.String
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// isRetryableTxError matches serialization_failure and deadlock_detected.
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
