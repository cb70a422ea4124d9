package billing

import (
	"context"
	"errors"
	"log"
)

// Swallowed-error classes reported through the service's counter hook. Each
// class is a distinct alertable signal: a sustained account_not_found rate
// means customer ids that will never reconcile on their own.
const (
	SwallowAccountNotFound = "account_not_found"
	SwallowProcessing      = "processing"
)

// HandleWebhook is the single entry point for inbound processor events.
// Signature verification is the only step allowed to reject the request; a
// non-nil return always wraps ErrInvalidSignature and must surface as an
// authentication failure. Every failure past the gate is logged, counted by
// class, and swallowed so the processor sees "received" and never enters a
// retry storm. The cost is documented in classifySwallowed: a swallowed
// event leaves the account unreconciled until a later event converges it.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.processor.VerifyWebhook(payload, sigHeader)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			return err
		}
		// Verified but undecodable payload: acknowledged, not reconciled.
		s.swallowed("decode", "", err)
		return nil
	}

	switch event.Type {
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		if err := s.reconcileSubscription(ctx, event.Subscription); err != nil {
			s.swallowed(classifySwallowed(err), event.RawType, err)
		}
	case EventInvoicePaid:
		if err := s.handleInvoicePaid(ctx, event); err != nil {
			s.swallowed(classifySwallowed(err), event.RawType, err)
		}
	case EventIgnored:
		log.Printf("[Billing] ignoring event type %s (%s)", event.RawType, event.ID)
	}
	return nil
}

// reconcileSubscription applies the state mirror for a subscription event.
// updated and deleted share this handler: the desired state is derived from
// the subscription's status, not from the event name. The snapshot comes
// straight from the event payload — trusted for performance, a deliberately
// weaker guarantee than the invoice path's re-fetch.
func (s *Service) reconcileSubscription(ctx context.Context, snap *SubscriptionSnapshot) error {
	patch, ok := MirrorSubscription(snap)
	if !ok {
		log.Printf("[Billing] subscription %s status %q not reconciled", snap.ID, snap.Status)
		return nil
	}
	account, err := s.store.GetByCustomerID(ctx, snap.CustomerID)
	if err != nil {
		return err
	}
	return s.store.UpdateSubscriptionFields(ctx, account.ID, patch)
}

// handleInvoicePaid refreshes the credit balance for a renewal in two
// independently fallible steps: zero the balance first, then re-fetch the
// subscription from the processor and reset the balance to the plan's
// allowance. A failure in the second step leaves the account at zero credits
// rather than stale ones — under-granting is the fail-safe direction, and
// the next delivery of the same event converges to the full allowance.
// Re-deriving from the authoritative snapshot makes duplicate and
// out-of-order deliveries idempotent.
func (s *Service) handleInvoicePaid(ctx context.Context, event *Event) error {
	if event.CustomerID == "" || event.SubscriptionID == "" {
		// One-off invoices carry no subscription; nothing to renew.
		log.Printf("[Billing] invoice %s without subscription, skipping", event.ID)
		return nil
	}

	if err := s.store.SetCreditsByCustomerID(ctx, event.CustomerID, 0); err != nil {
		return err
	}

	snap, err := s.processor.RetrieveSubscription(ctx, event.SubscriptionID)
	if err != nil {
		return err
	}
	if patch, ok := MirrorSubscription(snap); ok {
		account, err := s.store.GetByCustomerID(ctx, event.CustomerID)
		if err != nil {
			return err
		}
		if err := s.store.UpdateSubscriptionFields(ctx, account.ID, patch); err != nil {
			return err
		}
	}

	if !snap.Status.Entitling() {
		// The subscription ended between the invoice and this handler; the
		// mirror above already cleared the account, nothing to grant.
		return nil
	}
	allowance := ResetToAllowance(snap.ProductMetadata, snap.Status == StatusTrialing)
	return s.store.SetCreditsByCustomerID(ctx, event.CustomerID, allowance)
}

func (s *Service) swallowed(class, eventType string, err error) {
	log.Printf("[Billing] swallowed %s error while handling %s: %v", class, eventType, err)
	s.swallow(class)
}

// classifySwallowed buckets a swallowed reconciliation error.
// account_not_found usually means the event raced the checkout confirmation
// that links the customer id; a permanently unlinked customer shows up as a
// sustained non-zero rate on that counter. Everything else is a transient
// processing failure.
func classifySwallowed(err error) string {
	if errors.Is(err, ErrAccountNotFound) {
		return SwallowAccountNotFound
	}
	return SwallowProcessing
}
