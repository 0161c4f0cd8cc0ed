// Package entitlement implements the per-tenant entitlement ledger and the
// usage gate in front of quota-consuming work.
//
// Each tenant has exactly one ledger row. The gate increments usage_count
// and the billing reconciler moves tier, limit and lifecycle status; no
// end-user endpoint writes these fields directly.
package entitlement

import (
	"errors"
	"time"
)

var (
	ErrQuotaExceeded        = errors.New("entitlement: quota exceeded")
	ErrAccountNotFound      = errors.New("entitlement: account not found")
	ErrAccountExists        = errors.New("entitlement: account already exists")
	ErrInvalidTier          = errors.New("entitlement: invalid plan tier")
	ErrInvalidStatus        = errors.New("entitlement: invalid lifecycle status")
	ErrSubscriptionRefTaken = errors.New("entitlement: subscription already bound to another tenant")
	ErrAccountCanceled      = errors.New("entitlement: account canceled")
)

// Tier identifies the subscription plan.
type Tier string

const (
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// Status is the subscription lifecycle state.
type Status string

const (
	StatusTrial    Status = "trial"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTrial, StatusActive, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// Account is a tenant's ledger row.
type Account struct {
	TenantID           string    `json:"tenantId"`
	Tier               Tier      `json:"planTier"`
	Status             Status    `json:"lifecycleStatus"`
	UsageLimit         int64     `json:"usageLimit"`
	UsageCount         int64     `json:"usageCount"`
	BillingCustomerRef string    `json:"externalBillingRef,omitempty"`
	SubscriptionRef    string    `json:"externalSubscriptionRef,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Remaining is max(0, UsageLimit - UsageCount). A downgrade can leave the
// count above the new limit; that reads as zero remaining, never negative.
func (a *Account) Remaining() int64 {
	if r := a.UsageLimit - a.UsageCount; r > 0 {
		return r
	}
	return 0
}

// PlanChange is the set of fields a completed checkout assigns.
type PlanChange struct {
	Tier            Tier
	Limit           int64
	SubscriptionRef string
	CustomerRef     string // kept only if the account has none yet
}
