package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/entitlement"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

// Subscription is the caller-facing view of a tenant's plan and usage.
type Subscription struct {
	TenantID        string             `json:"organizationId"`
	Plan            entitlement.Tier   `json:"planType"`
	Status          entitlement.Status `json:"subscriptionStatus"`
	SubscriptionRef string             `json:"subscriptionId,omitempty"`
	Limit           int64              `json:"summariesLimit"`
	Used            int64              `json:"summariesUsed"`
	Remaining       int64              `json:"summariesRemaining"`
}

// ServiceConfig carries the provider-side settings for checkout.
type ServiceConfig struct {
	PriceIDs    map[entitlement.Tier]string
	FrontendURL string
}

// Service is the tenant-facing side of billing: checkout, status, cancel.
// A nil provider leaves status working and reports ErrProviderUnavailable
// for the rest.
type Service struct {
	ledger   *entitlement.Ledger
	provider Provider
	cfg      ServiceConfig
}

// NewService creates a billing service.
func NewService(ledger *entitlement.Ledger, provider Provider, cfg ServiceConfig) *Service {
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &Service{ledger: ledger, provider: provider, cfg: cfg}
}

// Checkout starts a subscription checkout for plan. The provider customer is
// created on first use and remembered on the ledger. The plan itself is only
// assigned when the completion webhook arrives.
func (s *Service) Checkout(ctx context.Context, scope tenant.Scope, email, orgName string, plan entitlement.Tier) (*CheckoutSession, error) {
	if s.provider == nil {
		return nil, ErrProviderUnavailable
	}
	price := s.cfg.PriceIDs[plan]
	if price == "" {
		return nil, fmt.Errorf("%w: no price configured for %s", ErrProviderUnavailable, plan)
	}

	acct, err := s.ledger.Account(ctx, scope)
	if err != nil {
		return nil, err
	}
	customer := acct.BillingCustomerRef
	if customer == "" {
		customer, err = s.provider.CreateCustomer(ctx, scope.TenantID(), email, orgName)
		if err != nil {
			return nil, err
		}
		acct, err = s.ledger.SetBillingRef(ctx, scope, customer)
		if err != nil {
			return nil, err
		}
		// A concurrent checkout may have won; use whatever the ledger kept.
		customer = acct.BillingCustomerRef
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		TenantID:    scope.TenantID(),
		CustomerRef: customer,
		PriceID:     price,
		Plan:        string(plan),
		SuccessURL:  s.cfg.FrontendURL + "/billing/success",
		CancelURL:   s.cfg.FrontendURL + "/billing/cancel",
	})
	if err != nil {
		return nil, err
	}
	logging.L(ctx).Info("checkout session created", "plan", plan, "session_id", sess.ID)
	return sess, nil
}

// Subscription reports the scope's plan, status and quota.
func (s *Service) Subscription(ctx context.Context, scope tenant.Scope) (*Subscription, error) {
	acct, err := s.ledger.Account(ctx, scope)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		TenantID:        acct.TenantID,
		Plan:            acct.Tier,
		Status:          acct.Status,
		SubscriptionRef: acct.SubscriptionRef,
		Limit:           acct.UsageLimit,
		Used:            acct.UsageCount,
		Remaining:       acct.Remaining(),
	}, nil
}

// Cancel asks the provider to cancel the scope's subscription. The ledger
// moves to canceled when the provider's deletion event is reconciled.
func (s *Service) Cancel(ctx context.Context, scope tenant.Scope) error {
	acct, err := s.ledger.Account(ctx, scope)
	if err != nil {
		return err
	}
	if acct.SubscriptionRef == "" || acct.Status == entitlement.StatusCanceled {
		return ErrNoSubscription
	}
	if s.provider == nil {
		return ErrProviderUnavailable
	}
	if err := s.provider.CancelSubscription(ctx, acct.SubscriptionRef); err != nil {
		return err
	}
	logging.L(ctx).Info("subscription cancellation requested", "subscription_ref", acct.SubscriptionRef)
	return nil
}
