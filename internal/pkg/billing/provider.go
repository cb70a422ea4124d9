package billing

import "context"

// ProcessorClient is the narrow contract against the payment processor. The
// engine only ever sees the projection types from types.go, never raw Stripe
// objects, so tests can run against an in-memory double.
type ProcessorClient interface {
	// NewCheckoutSession creates a hosted checkout and returns its URL.
	NewCheckoutSession(ctx context.Context, p CheckoutParams) (string, error)
	// RetrieveCheckoutSession fetches a session with customer and
	// subscription relations expanded in one round trip.
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	// RetrieveSubscription fetches a subscription with the product relation
	// expanded so the snapshot carries plan name and metadata.
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error)
	// FindActiveSubscription returns the customer's first active or
	// trialing subscription, or ErrNoActiveSubscription.
	FindActiveSubscription(ctx context.Context, customerID string) (*SubscriptionSnapshot, error)
	// ListCatalog returns the purchasable recurring plans carrying this
	// deployment's product group tag.
	ListCatalog(ctx context.Context) ([]CatalogEntry, error)
	// NewPortalSession creates a billing portal session and returns its URL.
	NewPortalSession(ctx context.Context, customerID string) (string, error)
	// VerifyWebhook authenticates a raw payload against the shared secret
	// and decodes it into an Event. It returns ErrInvalidSignature (wrapped)
	// on any authentication failure.
	VerifyWebhook(payload []byte, sigHeader string) (*Event, error)
}
