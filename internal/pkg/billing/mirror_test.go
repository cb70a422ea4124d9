package billing

import (
	"testing"
	"time"
)

func TestMirrorSubscriptionEntitling(t *testing.T) {
	periodEnd := time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC)
	for _, status := range []SubscriptionStatus{StatusActive, StatusTrialing} {
		snap := &SubscriptionSnapshot{
			ID:                "sub_123",
			CustomerID:        "cus_123",
			Status:            status,
			ProductID:         "prod_123",
			PlanName:          "Pro",
			CurrentPeriodEnd:  &periodEnd,
			CancelAtPeriodEnd: true,
		}

		patch, ok := MirrorSubscription(snap)
		if !ok {
			t.Fatalf("status %q: expected a patch", status)
		}
		if patch.SubscriptionID == nil || *patch.SubscriptionID != "sub_123" {
			t.Fatalf("status %q: subscription id not carried", status)
		}
		if patch.ProductID == nil || *patch.ProductID != "prod_123" {
			t.Fatalf("status %q: product id not carried", status)
		}
		if patch.PlanName == nil || *patch.PlanName != "Pro" {
			t.Fatalf("status %q: plan name not carried", status)
		}
		if patch.Status != status {
			t.Fatalf("status %q: patch status = %q", status, patch.Status)
		}
		if patch.ClearCredits {
			t.Fatalf("status %q: entitling patch must not touch credits", status)
		}
		if patch.CustomerID != nil {
			t.Fatalf("status %q: mirror must not link a customer", status)
		}
		if patch.RenewsAt == nil || !patch.RenewsAt.Equal(periodEnd) {
			t.Fatalf("status %q: period end not carried", status)
		}
		if !patch.CancelAtPeriodEnd {
			t.Fatalf("status %q: cancel flag not carried", status)
		}
	}
}

func TestMirrorSubscriptionTerminal(t *testing.T) {
	periodEnd := time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC)
	for _, status := range []SubscriptionStatus{StatusCanceled, StatusUnpaid} {
		snap := &SubscriptionSnapshot{
			ID:                "sub_123",
			Status:            status,
			ProductID:         "prod_123",
			PlanName:          "Pro",
			CurrentPeriodEnd:  &periodEnd,
			CancelAtPeriodEnd: true,
		}

		patch, ok := MirrorSubscription(snap)
		if !ok {
			t.Fatalf("status %q: expected a patch", status)
		}
		// All-or-nothing clear: identifiers, plan, and credits go together.
		if patch.SubscriptionID != nil || patch.ProductID != nil || patch.PlanName != nil {
			t.Fatalf("status %q: terminal patch must clear subscription fields", status)
		}
		if !patch.ClearCredits {
			t.Fatalf("status %q: terminal patch must clear credits", status)
		}
		if patch.RenewsAt != nil || patch.CancelAtPeriodEnd {
			t.Fatalf("status %q: terminal patch must clear the renewal date", status)
		}
		if patch.Status != status {
			t.Fatalf("status %q: patch status = %q", status, patch.Status)
		}
	}
}

func TestMirrorSubscriptionNoOpStatuses(t *testing.T) {
	for _, status := range []string{"past_due", "incomplete", "incomplete_expired", "paused", ""} {
		snap := &SubscriptionSnapshot{ID: "sub_123", Status: ParseStatus(status)}
		if _, ok := MirrorSubscription(snap); ok {
			t.Fatalf("status %q: expected no-op", status)
		}
	}
}

func TestParseEventType(t *testing.T) {
	tests := []struct {
		in   string
		want EventType
	}{
		{in: "customer.subscription.updated", want: EventSubscriptionUpdated},
		{in: "customer.subscription.deleted", want: EventSubscriptionDeleted},
		{in: "invoice.paid", want: EventInvoicePaid},
		{in: "invoice.payment_failed", want: EventIgnored},
		{in: "checkout.session.completed", want: EventIgnored},
		{in: "", want: EventIgnored},
	}

	for _, tt := range tests {
		if got := ParseEventType(tt.in); got != tt.want {
			t.Fatalf("ParseEventType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	for _, status := range []SubscriptionStatus{StatusActive, StatusTrialing} {
		if !status.Entitling() || status.Terminal() {
			t.Fatalf("status %q: expected entitling, non-terminal", status)
		}
	}
	for _, status := range []SubscriptionStatus{StatusCanceled, StatusUnpaid} {
		if status.Entitling() || !status.Terminal() {
			t.Fatalf("status %q: expected terminal, non-entitling", status)
		}
	}
	if StatusPastDue.Entitling() || StatusPastDue.Terminal() {
		t.Fatalf("past_due must be neither entitling nor terminal")
	}
}
