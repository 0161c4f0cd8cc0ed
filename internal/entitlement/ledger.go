package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/metrics"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/traces"
)

// Ledger is the entitlement state machine over a Store.
//
// Reads and the usage increment are scoped to the acting principal's tenant.
// Tier, limit and lifecycle transitions take a bare tenant id because only
// the billing reconciler drives them, on behalf of the payment provider.
type Ledger struct {
	store Store
	plans *Catalogue
}

// NewLedger creates a ledger over store using the given tier catalogue.
func NewLedger(store Store, plans *Catalogue) *Ledger {
	return &Ledger{store: store, plans: plans}
}

// Plans exposes the tier catalogue.
func (l *Ledger) Plans() *Catalogue {
	return l.plans
}

// Open creates a new tenant's row: trial status, basic tier, trial limit.
func (l *Ledger) Open(ctx context.Context, tenantID string) (*Account, error) {
	a := &Account{
		TenantID:   tenantID,
		Tier:       TierBasic,
		Status:     StatusTrial,
		UsageLimit: l.plans.TrialLimit(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := l.store.Open(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Account returns the scope's ledger row.
func (l *Ledger) Account(ctx context.Context, scope tenant.Scope) (*Account, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	a, err := l.store.Get(ctx, scope.TenantID())
	if err != nil {
		return nil, err
	}
	if err := tenant.CheckOwned(ctx, scope, a.TenantID); err != nil {
		return nil, err
	}
	return a, nil
}

// RemainingQuota is max(0, usageLimit - usageCount) for the scope's tenant.
func (l *Ledger) RemainingQuota(ctx context.Context, scope tenant.Scope) (int64, error) {
	a, err := l.Account(ctx, scope)
	if err != nil {
		return 0, err
	}
	return a.Remaining(), nil
}

// RecordUsage consumes one unit iff one is available, as a single atomic
// step on the tenant's row. It fails with ErrQuotaExceeded otherwise.
func (l *Ledger) RecordUsage(ctx context.Context, scope tenant.Scope) (*Account, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	a, err := l.store.RecordUsage(ctx, scope.TenantID())
	if err != nil {
		return nil, err
	}
	if err := tenant.CheckOwned(ctx, scope, a.TenantID); err != nil {
		return nil, err
	}
	return a, nil
}

// ApplyPlanChange assigns tier and subscription, marks the account active and
// resets the limit to the tier's ceiling. usageCount is left alone; resetting
// it is the billing period's job. Applying the same change twice is a no-op
// in effect.
func (l *Ledger) ApplyPlanChange(ctx context.Context, tenantID string, tier Tier, subscriptionRef, customerRef string) (*Account, error) {
	limit, err := l.plans.Limit(tier)
	if err != nil {
		return nil, err
	}
	a, err := l.store.ApplyPlanChange(ctx, tenantID, PlanChange{
		Tier:            tier,
		Limit:           limit,
		SubscriptionRef: subscriptionRef,
		CustomerRef:     customerRef,
	})
	if err != nil {
		return nil, err
	}
	metrics.PlanChangesTotal.WithLabelValues(string(tier)).Inc()
	logging.L(ctx).Info("plan applied",
		"tenant_id", tenantID, "tier", tier, "limit", limit, "usage_count", a.UsageCount)
	return a, nil
}

// ApplyCancellation marks the account canceled. Limit and usage are kept:
// quota already granted for the period is not revoked.
func (l *Ledger) ApplyCancellation(ctx context.Context, tenantID string) (*Account, error) {
	return l.ApplyStatus(ctx, tenantID, StatusCanceled)
}

// ApplyStatus moves the lifecycle status only.
func (l *Ledger) ApplyStatus(ctx context.Context, tenantID string, status Status) (*Account, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	a, err := l.store.ApplyStatus(ctx, tenantID, status)
	if err != nil {
		return nil, err
	}
	logging.L(ctx).Info("lifecycle status applied", "tenant_id", tenantID, "status", status)
	return a, nil
}

// ApplyProviderStatus moves the lifecycle status unless the account is
// already canceled. The check and the write are one atomic store step, so a
// cancellation that lands concurrently is never overwritten.
func (l *Ledger) ApplyProviderStatus(ctx context.Context, tenantID string, status Status) (*Account, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	a, err := l.store.ApplyStatusUnlessCanceled(ctx, tenantID, status)
	if err != nil {
		return nil, err
	}
	logging.L(ctx).Info("lifecycle status applied", "tenant_id", tenantID, "status", status)
	return a, nil
}

// SetBillingRef records the provider customer for the scope's tenant the
// first time one is created. Later calls keep the original reference.
func (l *Ledger) SetBillingRef(ctx context.Context, scope tenant.Scope, customerRef string) (*Account, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return l.store.SetBillingRef(ctx, scope.TenantID(), customerRef)
}

// FindBySubscriptionRef resolves a provider subscription to its tenant's row.
func (l *Ledger) FindBySubscriptionRef(ctx context.Context, ref string) (*Account, error) {
	if ref == "" {
		return nil, ErrAccountNotFound
	}
	return l.store.FindBySubscriptionRef(ctx, ref)
}

// Gate is the sole entry point for quota-consuming work.
type Gate struct {
	ledger *Ledger
}

// NewGate creates a usage gate over ledger.
func NewGate(ledger *Ledger) *Gate {
	return &Gate{ledger: ledger}
}

// AdmitAndConsume admits one unit of work for the scope's tenant, consuming
// quota on admission. Callers run the gated action only after a nil error.
// If that action then fails, the unit stays consumed.
func (g *Gate) AdmitAndConsume(ctx context.Context, scope tenant.Scope) (*Account, error) {
	ctx, span := traces.StartSpan(ctx, "entitlement.admit", traces.TenantID(scope.TenantID()))
	defer span.End()

	a, err := g.ledger.RecordUsage(ctx, scope)
	switch {
	case err == nil:
		metrics.GateDecisionsTotal.WithLabelValues("admitted").Inc()
		return a, nil
	case errors.Is(err, ErrQuotaExceeded):
		metrics.GateDecisionsTotal.WithLabelValues("quota_exceeded").Inc()
		logging.L(ctx).Info("usage gate rejected: quota exceeded")
		return nil, err
	default:
		metrics.GateDecisionsTotal.WithLabelValues("error").Inc()
		traces.Fail(span, err)
		return nil, err
	}
}
