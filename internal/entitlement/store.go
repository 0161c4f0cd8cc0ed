package entitlement

import "context"

// Store persists ledger rows. Every mutating method is a single atomic step
// on one tenant's row: implementations must never let two callers observe
// the same usage_count and both write.
type Store interface {
	Open(ctx context.Context, a *Account) error
	Get(ctx context.Context, tenantID string) (*Account, error)
	FindBySubscriptionRef(ctx context.Context, ref string) (*Account, error)

	// RecordUsage increments usage_count iff usage_count < usage_limit.
	RecordUsage(ctx context.Context, tenantID string) (*Account, error)
	ApplyPlanChange(ctx context.Context, tenantID string, change PlanChange) (*Account, error)
	ApplyStatus(ctx context.Context, tenantID string, status Status) (*Account, error)
	// ApplyStatusUnlessCanceled is ApplyStatus guarded, in the same step, by
	// the row not being canceled. A canceled row is ErrAccountCanceled.
	ApplyStatusUnlessCanceled(ctx context.Context, tenantID string, status Status) (*Account, error)
	SetBillingRef(ctx context.Context, tenantID, customerRef string) (*Account, error)
}
