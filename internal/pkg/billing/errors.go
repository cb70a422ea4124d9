package billing

import "errors"

// Error taxonomy for the reconciliation engine. Webhook handlers swallow
// everything except ErrInvalidSignature; see Service.HandleWebhookEvent.
var (
	// ErrBillingDisabled is returned when the Stripe API key or webhook
	// secret is not configured. The rest of the application stays usable.
	ErrBillingDisabled = errors.New("billing: not configured")

	// ErrInvalidSignature rejects a webhook at the gate, before any
	// processing or state change.
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")

	// ErrAccountNotFound means no account is linked to the external
	// customer id, typically because the checkout confirmation has not
	// landed yet.
	ErrAccountNotFound = errors.New("billing: account not found")

	// ErrIncompleteCheckoutData marks a checkout session missing customer,
	// subscription, product, or the embedded account reference. Fatal for
	// that single checkout attempt, never retried.
	ErrIncompleteCheckoutData = errors.New("billing: incomplete checkout data")

	ErrInsufficientCredits  = errors.New("billing: insufficient credits")
	ErrAllowanceExceeded    = errors.New("billing: credit allowance exceeded")
	ErrInvalidAdjustment    = errors.New("billing: adjustment must be positive")
	ErrNoActiveSubscription = errors.New("billing: no active subscription")
)
