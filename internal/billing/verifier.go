package billing

import (
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// DefaultTolerance is how old a signed delivery may be.
const DefaultTolerance = 5 * time.Minute

// Verifier authenticates webhook deliveries with the endpoint's signing
// secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier creates a verifier. tolerance <= 0 uses DefaultTolerance.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

// Verify checks the Stripe-Signature header against the raw payload and
// decodes the event. Without a configured secret nothing verifies.
func (v *Verifier) Verify(payload []byte, signature string) (stripe.Event, error) {
	if v.secret == "" || signature == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing signature or secret", ErrInvalidWebhook)
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	return evt, nil
}
