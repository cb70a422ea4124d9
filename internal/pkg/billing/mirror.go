package billing

import "time"

// AccountPatch is the desired-state projection the mirror produces. The
// subscription pointer fields carry asymmetric nil semantics: for
// SubscriptionID, ProductID and PlanName a nil pointer means "persist NULL"
// (every producer supplies the full desired state), while a nil CustomerID
// means "leave untouched" — only the checkout orchestrator links a customer.
type AccountPatch struct {
	CustomerID     *string
	SubscriptionID *string
	ProductID      *string
	PlanName       *string
	Status         SubscriptionStatus
	// RenewsAt is the current period end; nil clears the stored date.
	RenewsAt          *time.Time
	CancelAtPeriodEnd bool
	// ClearCredits drops the balance to NULL together with the
	// subscription fields. Cancellation intentionally forfeits remaining
	// credits; that is the authoritative policy, not an accident.
	ClearCredits bool
}

// MirrorSubscription maps a processor subscription snapshot to the account
// fields to persist. The second return value is false when the status is one
// this engine does not reconcile (past_due, incomplete, paused, ...): the
// caller still acknowledges the event but writes nothing.
//
// Credits are never granted here; refreshing the balance is the
// invoice-triggered path. Only terminal statuses touch credits, by clearing
// them.
func MirrorSubscription(snap *SubscriptionSnapshot) (AccountPatch, bool) {
	switch {
	case snap.Status.Entitling():
		id := snap.ID
		productID := snap.ProductID
		planName := snap.PlanName
		return AccountPatch{
			SubscriptionID:    &id,
			ProductID:         &productID,
			PlanName:          &planName,
			Status:            snap.Status,
			RenewsAt:          snap.CurrentPeriodEnd,
			CancelAtPeriodEnd: snap.CancelAtPeriodEnd,
		}, true
	case snap.Status.Terminal():
		return AccountPatch{
			SubscriptionID: nil,
			ProductID:      nil,
			PlanName:       nil,
			Status:         snap.Status,
			ClearCredits:   true,
		}, true
	default:
		return AccountPatch{}, false
	}
}
