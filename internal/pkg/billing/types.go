package billing

import (
	"strings"
	"time"
)

// SubscriptionStatus is the mirrored subset of Stripe subscription statuses.
// Values outside the known set are carried as-is and ignored by the mirror.
type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "none"
	StatusActive   SubscriptionStatus = "active"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusUnpaid   SubscriptionStatus = "unpaid"
)

// ParseStatus normalizes a raw processor status string.
func ParseStatus(raw string) SubscriptionStatus {
	return SubscriptionStatus(strings.ToLower(strings.TrimSpace(raw)))
}

// Entitling reports whether the status grants product access.
func (s SubscriptionStatus) Entitling() bool {
	return s == StatusActive || s == StatusTrialing
}

// Terminal reports whether the status ends the subscription and drops
// the credit balance with it.
func (s SubscriptionStatus) Terminal() bool {
	return s == StatusCanceled || s == StatusUnpaid
}

// EventType tags the webhook events this engine reconciles. Dispatch over
// this type is exhaustive; raw Stripe type strings outside the known set map
// to EventIgnored at parse time, never inside a handler.
type EventType int

const (
	EventIgnored EventType = iota
	EventSubscriptionUpdated
	EventSubscriptionDeleted
	EventInvoicePaid
)

// ParseEventType maps a raw Stripe event type string to the dispatch tag.
func ParseEventType(raw string) EventType {
	switch raw {
	case "customer.subscription.updated":
		return EventSubscriptionUpdated
	case "customer.subscription.deleted":
		return EventSubscriptionDeleted
	case "invoice.paid":
		return EventInvoicePaid
	default:
		return EventIgnored
	}
}

func (t EventType) String() string {
	switch t {
	case EventSubscriptionUpdated:
		return "customer.subscription.updated"
	case EventSubscriptionDeleted:
		return "customer.subscription.deleted"
	case EventInvoicePaid:
		return "invoice.paid"
	default:
		return "ignored"
	}
}

// Product metadata keys owned by the Stripe dashboard configuration.
const (
	MetaCreditsAllowance = "credits_allowance"
	MetaTrialCredits     = "trial_period_credits"
	MetaProductGroup     = "product_group"
)

// SubscriptionSnapshot is the projection of a processor-side subscription
// used for reconciliation. ProductMetadata is only populated when the
// snapshot was fetched with the product relation expanded; snapshots decoded
// from webhook payloads carry an empty map.
type SubscriptionSnapshot struct {
	ID                string
	CustomerID        string
	Status            SubscriptionStatus
	ProductID         string
	PlanName          string
	ProductMetadata   map[string]string
	PriceID           string
	Metered           bool
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
}

// CheckoutSession is the projection of a completed checkout used by the
// checkout orchestrator.
type CheckoutSession struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	// ClientReferenceID carries the internal user id embedded at session
	// creation time.
	ClientReferenceID string
}

// CatalogEntry is one purchasable plan on the pricing page.
type CatalogEntry struct {
	ProductID       string
	Name            string
	Description     string
	Metadata        map[string]string
	PriceID         string
	UnitAmount      int64
	Currency        string
	Interval        string
	TrialPeriodDays int64
	Metered         bool
}

// Allowance returns the credit allowance advertised by the entry's metadata.
func (e CatalogEntry) Allowance() int {
	return ComputeAllowance(e.Metadata, false)
}

// Event is a verified webhook event. Subscription is populated for
// subscription events; CustomerID/SubscriptionID for invoice.paid.
type Event struct {
	ID             string
	Type           EventType
	RawType        string
	Subscription   *SubscriptionSnapshot
	CustomerID     string
	SubscriptionID string
}

// CheckoutParams describes a checkout session to create.
type CheckoutParams struct {
	PriceID    string
	CustomerID string
	// UserRef is embedded as client_reference_id and read back by the
	// checkout orchestrator.
	UserRef string
	// Metered prices must not send a per-unit quantity.
	Metered bool
}
