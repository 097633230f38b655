package external

import (
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Stripe webhook event types consumed by the billing webhook handler.
// All other event types are acknowledged and ignored.
const (
	EventStripeCheckoutCompleted = "checkout.session.completed"
	EventStripeSubCreated        = "customer.subscription.created"
	EventStripeSubUpdated        = "customer.subscription.updated"
	EventStripeSubDeleted        = "customer.subscription.deleted"
)

// StripeEventVerifier verifies and parses an incoming Stripe webhook payload.
// Defined as an interface so the webhook handler can be tested without
// producing real signatures.
type StripeEventVerifier interface {
	// ConstructEvent verifies the Stripe-Signature header against the payload
	// using the webhook signing secret and returns the parsed event.
	ConstructEvent(payload []byte, sigHeader, secret string) (stripe.Event, error)
}

// StripeVerifier is the production StripeEventVerifier backed by the
// official stripe-go webhook signature check (HMAC-SHA256 with timestamp
// tolerance).
type StripeVerifier struct{}

// ConstructEvent delegates to stripe-go's webhook verification.
func (StripeVerifier) ConstructEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, secret)
}

// Compile-time interface compliance check.
var _ StripeEventVerifier = StripeVerifier{}
