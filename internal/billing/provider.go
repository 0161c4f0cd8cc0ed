package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// CheckoutRequest describes a subscription checkout for one tenant.
type CheckoutRequest struct {
	TenantID    string
	CustomerRef string
	PriceID     string
	Plan        string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the hosted checkout page the customer is sent to.
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// Provider is the slice of the payment provider the service calls out to.
type Provider interface {
	CreateCustomer(ctx context.Context, tenantID, email, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionRef string) error
}

// StripeProvider implements Provider with stripe-go.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider creates a provider bound to a secret API key.
func NewStripeProvider(secretKey string) *StripeProvider {
	return &StripeProvider{api: client.New(secretKey, nil)}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, tenantID, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata(MetadataTenantID, tenantID)

	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return c.ID, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(req.CustomerRef),
		ClientReferenceID: stripe.String(req.TenantID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataTenantID: req.TenantID},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataTenantID, req.TenantID)
	params.AddMetadata(MetadataPlanType, req.Plan)

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionRef string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := p.api.Subscriptions.Cancel(subscriptionRef, params); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ Provider = (*StripeProvider)(nil)
