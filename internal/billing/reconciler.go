package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v81"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/entitlement"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/metrics"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/traces"
)

// Outcome describes what a delivery did to the ledger.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeNoop      Outcome = "noop"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRejected  Outcome = "rejected"
)

// Reconciler applies provider events to the ledger.
type Reconciler struct {
	verifier *Verifier
	ledger   *entitlement.Ledger
	events   EventLog
}

// NewReconciler creates a reconciler. events may be nil, in which case
// redeliveries are re-applied (harmlessly).
func NewReconciler(verifier *Verifier, ledger *entitlement.Ledger, events EventLog) *Reconciler {
	return &Reconciler{verifier: verifier, ledger: ledger, events: events}
}

// HandleWebhook verifies, deduplicates, parses and applies one delivery. An
// unverifiable delivery touches nothing.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	evt, err := r.verifier.Verify(payload, signature)
	if err != nil {
		metrics.BillingWebhooksTotal.WithLabelValues("unknown", "invalid").Inc()
		logging.L(ctx).Warn("rejected billing webhook", "error", err)
		return "", err
	}
	return r.HandleEvent(ctx, evt)
}

// HandleEvent processes an already verified event.
func (r *Reconciler) HandleEvent(ctx context.Context, evt stripe.Event) (Outcome, error) {
	eventType := string(evt.Type)
	ctx, span := traces.StartSpan(ctx, "billing.reconcile", traces.EventID(evt.ID), traces.EventType(eventType))
	defer span.End()
	log := logging.L(ctx).With("event_id", evt.ID, "event_type", eventType)

	outcome, err := r.handle(ctx, evt)
	if err != nil {
		traces.Fail(span, err)
		label := "error"
		switch {
		case errors.Is(err, ErrUnsupportedEvent):
			label = string(OutcomeIgnored)
		case errors.Is(err, ErrInvalidWebhook):
			label = "invalid"
		case errors.Is(err, ErrUnknownTenantReference):
			label = "unknown_tenant"
		case errors.Is(err, ErrSubscriptionConflict):
			label = "subscription_conflict"
		}
		metrics.BillingWebhooksTotal.WithLabelValues(eventType, label).Inc()
		if errors.Is(err, ErrUnsupportedEvent) {
			log.Warn("ignoring unsupported billing event")
		} else {
			log.Error("billing event not applied", "error", err)
		}
		return outcome, err
	}

	traces.Outcome(span, string(outcome))
	metrics.BillingWebhooksTotal.WithLabelValues(eventType, string(outcome)).Inc()
	log.Info("billing event processed", "outcome", outcome)
	return outcome, nil
}

func (r *Reconciler) handle(ctx context.Context, evt stripe.Event) (Outcome, error) {
	if evt.ID == "" {
		return "", fmt.Errorf("%w: event id missing", ErrInvalidWebhook)
	}
	if r.events != nil {
		seen, err := r.events.Seen(ctx, evt.ID)
		if err != nil {
			return "", err
		}
		if seen {
			return OutcomeDuplicate, nil
		}
	}

	parsed, err := Parse(evt)
	if err != nil {
		if errors.Is(err, ErrUnsupportedEvent) {
			return OutcomeIgnored, err
		}
		return "", err
	}

	outcome, err := r.Apply(ctx, parsed)
	if errors.Is(err, ErrSubscriptionConflict) {
		// Permanent: no redelivery can succeed, so remember the event and stop.
		r.mark(ctx, evt)
		return OutcomeRejected, err
	}
	if err != nil {
		return "", err
	}
	r.mark(ctx, evt)
	return outcome, nil
}

func (r *Reconciler) mark(ctx context.Context, evt stripe.Event) {
	if r.events == nil {
		return
	}
	if err := r.events.Mark(ctx, evt.ID, string(evt.Type)); err != nil {
		// Applied but not remembered: a redelivery re-applies, which is safe.
		logging.L(ctx).Warn("failed to record processed billing event", "event_id", evt.ID, "error", err)
	}
}

// Apply applies a parsed event. Every branch is idempotent.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (Outcome, error) {
	switch e := ev.(type) {
	case CheckoutCompleted:
		_, err := r.ledger.ApplyPlanChange(ctx, e.TenantID, e.Tier, e.SubscriptionRef, e.CustomerRef)
		if errors.Is(err, entitlement.ErrAccountNotFound) {
			return "", fmt.Errorf("%w: tenant %s", ErrUnknownTenantReference, e.TenantID)
		}
		if errors.Is(err, entitlement.ErrSubscriptionRefTaken) {
			return "", fmt.Errorf("%w: subscription %s for tenant %s", ErrSubscriptionConflict, e.SubscriptionRef, e.TenantID)
		}
		if err != nil {
			return "", err
		}
		return OutcomeApplied, nil

	case SubscriptionUpdated:
		status, ok := mapStatus(e.Status)
		if !ok {
			logging.L(ctx).Info("subscription status not tracked", "subscription_ref", e.SubscriptionRef, "status", e.Status)
			return OutcomeNoop, nil
		}
		acct, err := r.ledger.FindBySubscriptionRef(ctx, e.SubscriptionRef)
		if errors.Is(err, entitlement.ErrAccountNotFound) {
			logging.L(ctx).Info("subscription update for unknown subscription", "subscription_ref", e.SubscriptionRef)
			return OutcomeNoop, nil
		}
		if err != nil {
			return "", err
		}
		if acct.Status == status {
			return OutcomeNoop, nil
		}
		// A canceled subscription never comes back; a late update must not revive it.
		_, err = r.ledger.ApplyProviderStatus(ctx, acct.TenantID, status)
		if errors.Is(err, entitlement.ErrAccountCanceled) {
			logging.L(ctx).Info("subscription update for canceled account", "subscription_ref", e.SubscriptionRef)
			return OutcomeNoop, nil
		}
		if err != nil {
			return "", err
		}
		return OutcomeApplied, nil

	case SubscriptionDeleted:
		acct, err := r.ledger.FindBySubscriptionRef(ctx, e.SubscriptionRef)
		if errors.Is(err, entitlement.ErrAccountNotFound) {
			return OutcomeNoop, nil
		}
		if err != nil {
			return "", err
		}
		if acct.Status == entitlement.StatusCanceled {
			return OutcomeNoop, nil
		}
		if _, err := r.ledger.ApplyCancellation(ctx, acct.TenantID); err != nil {
			return "", err
		}
		return OutcomeApplied, nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedEvent, ev)
}
