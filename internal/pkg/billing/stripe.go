package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/tailorcv/tailorcv/internal/pkg/env"
)

// StripeClient implements ProcessorClient over the Stripe API. The client is
// constructed explicitly and passed around; there is no package-level API
// key, so tests and multi-tenant setups can hold differently configured
// instances side by side.
type StripeClient struct {
	api           *client.API
	webhookSecret string
	productGroup  string
	baseURL       string
}

// NewStripeClient wires a Stripe-backed processor client. productGroup
// filters the catalog by product metadata so one Stripe account can serve
// several deployments; baseURL is the public origin used to build checkout
// redirect URLs.
func NewStripeClient(apiKey, webhookSecret, productGroup, baseURL string) *StripeClient {
	return &StripeClient{
		api:           client.New(apiKey, nil),
		webhookSecret: webhookSecret,
		productGroup:  productGroup,
		baseURL:       strings.TrimRight(baseURL, "/"),
	}
}

// NewStripeClientFromEnv builds the client from STRIPE_API_KEY,
// STRIPE_WEBHOOK_SECRET, STRIPE_PRODUCT_GROUP and PUBLIC_DOMAIN. Returns
// ErrBillingDisabled when either secret is missing so callers can degrade
// the billing subsystem instead of crashing.
func NewStripeClientFromEnv() (*StripeClient, error) {
	apiKey := strings.TrimSpace(env.GetEnv("STRIPE_API_KEY", ""))
	secret := strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))
	if apiKey == "" || secret == "" {
		return nil, ErrBillingDisabled
	}
	return NewStripeClient(
		apiKey,
		secret,
		env.GetEnv("STRIPE_PRODUCT_GROUP", "tailorcv"),
		env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"),
	), nil
}

// Enabled reports whether the billing configuration is present.
func Enabled() bool {
	return strings.TrimSpace(env.GetEnv("STRIPE_API_KEY", "")) != "" &&
		strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")) != ""
}

func (s *StripeClient) NewCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	item := &stripe.CheckoutSessionLineItemParams{
		Price: stripe.String(p.PriceID),
	}
	if !p.Metered {
		item.Quantity = stripe.Int64(1)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:                stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes:  stripe.StringSlice([]string{"card"}),
		LineItems:           []*stripe.CheckoutSessionLineItemParams{item},
		SuccessURL:          stripe.String(s.baseURL + "/billing/checkout?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:           stripe.String(s.baseURL + "/pricing"),
		ClientReferenceID:   stripe.String(p.UserRef),
		AllowPromotionCodes: stripe.Bool(true),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *StripeClient) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("customer")
	params.AddExpand("subscription")

	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: retrieve checkout session %s: %w", sessionID, err)
	}

	out := &CheckoutSession{
		ID:                sess.ID,
		ClientReferenceID: sess.ClientReferenceID,
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
	}
	return out, nil
}

func (s *StripeClient) RetrieveSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price.product")

	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: retrieve subscription %s: %w", subscriptionID, err)
	}
	return snapshotFromSubscription(sub), nil
}

func (s *StripeClient) FindActiveSubscription(ctx context.Context, customerID string) (*SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(10)
	params.AddExpand("data.items.data.price.product")

	iter := s.api.Subscriptions.List(params)
	for iter.Next() {
		sub := iter.Subscription()
		status := ParseStatus(string(sub.Status))
		if status.Entitling() {
			return snapshotFromSubscription(sub), nil
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe: list subscriptions for %s: %w", customerID, err)
	}
	return nil, ErrNoActiveSubscription
}

func (s *StripeClient) ListCatalog(ctx context.Context) ([]CatalogEntry, error) {
	params := &stripe.PriceListParams{
		Active: stripe.Bool(true),
		Type:   stripe.String(string(stripe.PriceTypeRecurring)),
	}
	params.Context = ctx
	params.AddExpand("data.product")

	var entries []CatalogEntry
	iter := s.api.Prices.List(params)
	for iter.Next() {
		price := iter.Price()
		product := price.Product
		if product == nil || !product.Active {
			continue
		}
		if s.productGroup != "" && product.Metadata[MetaProductGroup] != s.productGroup {
			continue
		}
		entry := CatalogEntry{
			ProductID:   product.ID,
			Name:        product.Name,
			Description: product.Description,
			Metadata:    product.Metadata,
			PriceID:     price.ID,
			UnitAmount:  price.UnitAmount,
			Currency:    string(price.Currency),
		}
		if price.Recurring != nil {
			entry.Interval = string(price.Recurring.Interval)
			entry.TrialPeriodDays = price.Recurring.TrialPeriodDays
			entry.Metered = price.Recurring.UsageType == stripe.PriceRecurringUsageTypeMetered
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe: list catalog: %w", err)
	}
	return entries, nil
}

func (s *StripeClient) NewPortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.baseURL + "/dashboard"),
	}
	params.Context = ctx

	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create portal session: %w", err)
	}
	return sess.URL, nil
}

// VerifyWebhook is the authentication gate for inbound events. Everything
// after a successful verification is acknowledge-only; only this step may
// reject the request.
func (s *StripeClient) VerifyWebhook(payload []byte, sigHeader string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(ev.ID, string(ev.Type), ev.Data.Raw)
}

// decodeEvent projects a verified Stripe event into the engine's Event type.
// Subscription events are decoded straight from the payload (trusted for
// performance, see Service.reconcileSubscription); invoice events only yield
// the ids needed for the authoritative re-fetch.
func decodeEvent(id, rawType string, raw json.RawMessage) (*Event, error) {
	out := &Event{
		ID:      id,
		Type:    ParseEventType(rawType),
		RawType: rawType,
	}

	switch out.Type {
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub webhookSubscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("stripe: decode %s payload: %w", rawType, err)
		}
		out.Subscription = sub.snapshot()
	case EventInvoicePaid:
		var inv webhookInvoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, fmt.Errorf("stripe: decode %s payload: %w", rawType, err)
		}
		out.CustomerID = inv.Customer
		out.SubscriptionID = inv.Parent.SubscriptionDetails.Subscription
	case EventIgnored:
		// Nothing to decode; the dispatcher logs and acknowledges.
	}
	return out, nil
}

// Webhook payloads are decoded into local structs instead of the SDK types:
// the payload shape follows the event's pinned API version, not the SDK's,
// and only a handful of fields matter here.
type webhookSubscription struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	Items             struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID        string `json:"id"`
				Nickname  string `json:"nickname"`
				Product   string `json:"product"`
				Recurring struct {
					UsageType string `json:"usage_type"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (w *webhookSubscription) snapshot() *SubscriptionSnapshot {
	snap := &SubscriptionSnapshot{
		ID:                w.ID,
		CustomerID:        w.Customer,
		Status:            ParseStatus(w.Status),
		CancelAtPeriodEnd: w.CancelAtPeriodEnd,
		ProductMetadata:   map[string]string{},
	}
	if len(w.Items.Data) > 0 {
		item := w.Items.Data[0]
		snap.ProductID = item.Price.Product
		snap.PriceID = item.Price.ID
		snap.Metered = item.Price.Recurring.UsageType == "metered"
		snap.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
		// The payload carries the product as a bare id; the price nickname
		// is the best display name available without another round trip.
		snap.PlanName = item.Price.Nickname
		if snap.PlanName == "" {
			snap.PlanName = item.Price.Product
		}
	}
	return snap
}

type webhookInvoice struct {
	Customer string `json:"customer"`
	Parent   struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func snapshotFromSubscription(sub *stripe.Subscription) *SubscriptionSnapshot {
	snap := &SubscriptionSnapshot{
		ID:                sub.ID,
		Status:            ParseStatus(string(sub.Status)),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		ProductMetadata:   map[string]string{},
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		snap.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
		if item.Price != nil {
			snap.PriceID = item.Price.ID
			if item.Price.Recurring != nil {
				snap.Metered = item.Price.Recurring.UsageType == stripe.PriceRecurringUsageTypeMetered
			}
			if item.Price.Product != nil {
				snap.ProductID = item.Price.Product.ID
				snap.PlanName = item.Price.Product.Name
				if item.Price.Product.Metadata != nil {
					snap.ProductMetadata = item.Price.Product.Metadata
				}
			}
		}
	}
	return snap
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
