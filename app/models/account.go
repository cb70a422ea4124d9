package models

import "time"

// Subscription status values mirrored from the payment processor.
const (
	SubscriptionStatusNone     = "none"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusUnpaid   = "unpaid"
)

// Account is the billable entity behind a user. It mirrors the subscription
// state owned by Stripe plus the prepaid credit balance. Stripe identifiers
// stay NULL until the first completed checkout links them; Credits stays NULL
// until the first invoice.paid allocation.
type Account struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	UserID                uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	StripeCustomerID      *string    `gorm:"type:varchar(191);uniqueIndex" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID  *string    `gorm:"type:varchar(191);index" json:"stripe_subscription_id,omitempty"`
	StripeProductID       *string    `gorm:"type:varchar(191)" json:"stripe_product_id,omitempty"`
	PlanName              *string    `gorm:"type:varchar(100)" json:"plan_name,omitempty"`
	SubscriptionStatus    string     `gorm:"type:varchar(32);not null;default:'none';index" json:"subscription_status"`
	SubscriptionRenewsAt  *time.Time `gorm:"type:timestamp;default:null" json:"subscription_renews_at,omitempty"`
	CancelAtPeriodEnd     bool       `gorm:"not null;default:false" json:"cancel_at_period_end"`
	Credits               *int       `gorm:"default:null" json:"credits,omitempty"`
	SubscriptionUpdatedAt *time.Time `gorm:"type:timestamp;default:null" json:"subscription_updated_at,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreditBalance treats an unset balance as zero.
func (a *Account) CreditBalance() int {
	if a == nil || a.Credits == nil {
		return 0
	}
	return *a.Credits
}

// HasStripeCustomer reports whether the account is linked to a Stripe customer.
func (a *Account) HasStripeCustomer() bool {
	return a != nil && a.StripeCustomerID != nil && *a.StripeCustomerID != ""
}

// IsSubscribed reports whether the mirrored status entitles product access.
func (a *Account) IsSubscribed() bool {
	switch a.SubscriptionStatus {
	case SubscriptionStatusActive, SubscriptionStatusTrialing:
		return true
	default:
		return false
	}
}

// RenewsOn formats the mirrored period end for display, empty when the
// mirror carries no renewal date.
func (a *Account) RenewsOn() string {
	if a == nil || a.SubscriptionRenewsAt == nil {
		return ""
	}
	return a.SubscriptionRenewsAt.Format("January 2, 2006")
}

// PlanDisplayName returns the denormalized plan name or a fallback.
func (a *Account) PlanDisplayName() string {
	if a == nil || a.PlanName == nil || *a.PlanName == "" {
		return "Free"
	}
	return *a.PlanName
}
