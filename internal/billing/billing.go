// Package billing reconciles the payment provider's view of a subscription
// into the entitlement ledger.
//
// Stripe is the source of truth for what a tenant has paid for. Webhook
// deliveries are verified, parsed into a closed set of events and applied
// through the ledger's reconciler entry points. Deliveries can repeat and
// arrive out of order, so every apply is idempotent and Stripe's own
// redelivery is the only retry.
package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/entitlement"
)

var (
	ErrInvalidWebhook         = errors.New("billing: invalid webhook")
	ErrUnsupportedEvent       = errors.New("billing: unsupported event type")
	ErrUnknownTenantReference = errors.New("billing: event references an unknown tenant")
	ErrNoSubscription         = errors.New("billing: tenant has no subscription")
	ErrProviderUnavailable    = errors.New("billing: payment provider not configured")
	ErrSubscriptionConflict   = errors.New("billing: subscription already bound to another tenant")
)

// Stripe event types the reconciler consumes.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Metadata keys set on checkout sessions so the completion event can be
// mapped back to a tenant.
const (
	MetadataTenantID = "tenant_id"
	MetadataPlanType = "plan_type"
)

// Event is one of CheckoutCompleted, SubscriptionUpdated or
// SubscriptionDeleted.
type Event interface {
	eventType() string
}

// CheckoutCompleted assigns a plan after a successful checkout.
type CheckoutCompleted struct {
	TenantID        string
	SubscriptionRef string
	CustomerRef     string
	Tier            entitlement.Tier
}

// SubscriptionUpdated carries the provider's subscription status.
type SubscriptionUpdated struct {
	SubscriptionRef string
	Status          stripe.SubscriptionStatus
}

// SubscriptionDeleted ends a subscription.
type SubscriptionDeleted struct {
	SubscriptionRef string
}

func (CheckoutCompleted) eventType() string   { return EventCheckoutCompleted }
func (SubscriptionUpdated) eventType() string { return EventSubscriptionUpdated }
func (SubscriptionDeleted) eventType() string { return EventSubscriptionDeleted }

// Parse turns a verified Stripe event into a reconciler event.
func Parse(evt stripe.Event) (Event, error) {
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		if isSupported(string(evt.Type)) {
			return nil, fmt.Errorf("%w: event %s has no data", ErrInvalidWebhook, evt.ID)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, evt.Type)
	}

	switch string(evt.Type) {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: decode checkout session: %v", ErrInvalidWebhook, err)
		}
		return parseCheckout(&sess)

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: decode subscription: %v", ErrInvalidWebhook, err)
		}
		if sub.ID == "" {
			return nil, fmt.Errorf("%w: subscription id missing", ErrInvalidWebhook)
		}
		if string(evt.Type) == EventSubscriptionDeleted {
			return SubscriptionDeleted{SubscriptionRef: sub.ID}, nil
		}
		return SubscriptionUpdated{SubscriptionRef: sub.ID, Status: sub.Status}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, evt.Type)
}

func parseCheckout(sess *stripe.CheckoutSession) (Event, error) {
	tenantID := strings.TrimSpace(sess.Metadata[MetadataTenantID])
	if tenantID == "" {
		tenantID = strings.TrimSpace(sess.ClientReferenceID)
	}
	if tenantID == "" {
		return nil, fmt.Errorf("%w: checkout session %s has no tenant id", ErrInvalidWebhook, sess.ID)
	}
	tier, err := entitlement.ParseTier(sess.Metadata[MetadataPlanType])
	if err != nil {
		return nil, fmt.Errorf("%w: checkout session %s: %v", ErrInvalidWebhook, sess.ID, err)
	}
	if sess.Subscription == nil || sess.Subscription.ID == "" {
		return nil, fmt.Errorf("%w: checkout session %s has no subscription", ErrInvalidWebhook, sess.ID)
	}

	ev := CheckoutCompleted{
		TenantID:        tenantID,
		SubscriptionRef: sess.Subscription.ID,
		Tier:            tier,
	}
	if sess.Customer != nil {
		ev.CustomerRef = sess.Customer.ID
	}
	return ev, nil
}

func isSupported(t string) bool {
	switch t {
	case EventCheckoutCompleted, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return true
	}
	return false
}

// mapStatus translates a provider subscription status into a lifecycle
// status. ok is false for statuses the ledger does not track.
func mapStatus(s stripe.SubscriptionStatus) (entitlement.Status, bool) {
	switch s {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return entitlement.StatusActive, true
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncomplete:
		return entitlement.StatusPastDue, true
	case stripe.SubscriptionStatusCanceled:
		return entitlement.StatusCanceled, true
	}
	return "", false
}
