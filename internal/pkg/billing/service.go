package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/tailorcv/tailorcv/app/models"
)

// Service is the billing reconciliation engine: it keeps the local account's
// subscription mirror and credit balance consistent with the payment
// processor, which is the system of record. Both collaborators are injected;
// the service holds no process-wide state.
type Service struct {
	store     AccountStore
	processor ProcessorClient
	// swallow is invoked once per swallowed webhook error with its class
	// (see webhook.go). Wired to the redis counters in production, to a
	// recorder in tests.
	swallow func(class string)
}

// NewService creates the engine from injected collaborators. A nil swallow
// hook is replaced with a no-op.
func NewService(store AccountStore, processor ProcessorClient, swallow func(class string)) *Service {
	if swallow == nil {
		swallow = func(string) {}
	}
	return &Service{store: store, processor: processor, swallow: swallow}
}

// NewServiceFromEnv wires the engine against the Stripe client configured in
// the environment. Returns ErrBillingDisabled when Stripe is not configured;
// callers keep the rest of the application up and treat billing as absent.
func NewServiceFromEnv(store AccountStore, swallow func(class string)) (*Service, error) {
	processor, err := NewStripeClientFromEnv()
	if err != nil {
		return nil, err
	}
	return NewService(store, processor, swallow), nil
}

// ConfirmCheckout turns a completed checkout session into first-time account
// activation: customer id, subscription id, product id, plan name and status
// are persisted. Credits are intentionally not set here; the first
// invoice.paid event performs the initial allocation, so callers must
// tolerate a short window of active-but-unset credits.
//
// Any missing piece of the session (customer, subscription, product, or the
// embedded account reference) yields ErrIncompleteCheckoutData: fatal for
// this checkout attempt, never retried.
func (s *Service) ConfirmCheckout(ctx context.Context, sessionID string) (*models.Account, error) {
	if sessionID == "" {
		return nil, ErrIncompleteCheckoutData
	}

	sess, err := s.processor.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.CustomerID == "" || sess.SubscriptionID == "" || sess.ClientReferenceID == "" {
		return nil, ErrIncompleteCheckoutData
	}
	userID, err := strconv.ParseUint(sess.ClientReferenceID, 10, 64)
	if err != nil || userID == 0 {
		return nil, ErrIncompleteCheckoutData
	}

	snap, err := s.processor.RetrieveSubscription(ctx, sess.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if snap.ProductID == "" {
		return nil, ErrIncompleteCheckoutData
	}

	account, err := s.store.GetByUserID(ctx, uint(userID))
	if err != nil {
		return nil, err
	}

	patch, ok := MirrorSubscription(snap)
	if !ok {
		// A session whose subscription never reached an entitling status
		// has nothing to activate.
		return nil, ErrIncompleteCheckoutData
	}
	patch.CustomerID = &sess.CustomerID
	if err := s.store.UpdateSubscriptionFields(ctx, account.ID, patch); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, account.ID)
}

// StartCheckout returns the URL to send the user to for the given price. An
// already-subscribed account is sent to the billing portal instead of a
// second checkout.
func (s *Service) StartCheckout(ctx context.Context, userID uint, priceID string) (string, error) {
	account, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if account.IsSubscribed() && account.HasStripeCustomer() {
		return s.processor.NewPortalSession(ctx, *account.StripeCustomerID)
	}

	entries, err := s.processor.ListCatalog(ctx)
	if err != nil {
		return "", err
	}
	metered, found := false, false
	for _, e := range entries {
		if e.PriceID == priceID {
			metered = e.Metered
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("billing: unknown price %s", priceID)
	}

	params := CheckoutParams{
		PriceID: priceID,
		UserRef: strconv.FormatUint(uint64(account.UserID), 10),
		Metered: metered,
	}
	if account.HasStripeCustomer() {
		params.CustomerID = *account.StripeCustomerID
	}
	return s.processor.NewCheckoutSession(ctx, params)
}

// PortalURL returns a billing portal session URL for the account's customer.
func (s *Service) PortalURL(ctx context.Context, userID uint) (string, error) {
	account, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !account.HasStripeCustomer() {
		return "", ErrNoActiveSubscription
	}
	return s.processor.NewPortalSession(ctx, *account.StripeCustomerID)
}

// Catalog lists the purchasable plans for the pricing page.
func (s *Service) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	return s.processor.ListCatalog(ctx)
}

// CreditSummary is the account's current standing as exposed by the API.
type CreditSummary struct {
	Balance   int                `json:"balance"`
	Allowance int                `json:"allowance"`
	Status    SubscriptionStatus `json:"status"`
	PlanName  string             `json:"plan_name"`
}

// Credits reports the user's balance against the live allowance of their
// active subscription.
func (s *Service) Credits(ctx context.Context, userID uint) (*CreditSummary, error) {
	account, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	allowance, err := s.allowanceFor(ctx, account)
	if err != nil {
		return nil, err
	}
	return &CreditSummary{
		Balance:   account.CreditBalance(),
		Allowance: allowance,
		Status:    ParseStatus(account.SubscriptionStatus),
		PlanName:  account.PlanDisplayName(),
	}, nil
}

// Reserve is the pure pre-flight check of the adjustment flow: it verifies
// that delta credits would fit under the live allowance without mutating
// anything. It gives no guarantee to a later Commit — only Commit's
// conditional update is authoritative under concurrency.
func (s *Service) Reserve(ctx context.Context, userID uint, delta int) error {
	account, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	allowance, err := s.allowanceFor(ctx, account)
	if err != nil {
		return err
	}
	if !CheckAvailable(account.CreditBalance(), allowance, delta) {
		return ErrAllowanceExceeded
	}
	return nil
}

// Commit grants delta credits, re-deriving the allowance and applying the
// grant as a single conditional update at the storage layer. Two concurrent
// commits can never jointly exceed the allowance.
func (s *Service) Commit(ctx context.Context, userID uint, delta int) (int, error) {
	if delta <= 0 {
		return 0, ErrInvalidAdjustment
	}
	account, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	allowance, err := s.allowanceFor(ctx, account)
	if err != nil {
		return 0, err
	}
	return s.store.AddCreditsIfAvailable(ctx, account.ID, delta, allowance)
}

// Deduct spends delta credits as a single conditional update; it fails with
// ErrInsufficientCredits when the balance does not cover delta.
func (s *Service) Deduct(ctx context.Context, userID uint, delta int) (int, error) {
	if delta <= 0 {
		return 0, ErrInvalidAdjustment
	}
	account, err := s.store.GetByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.store.DeductCredits(ctx, account.ID, delta)
}

// allowanceFor derives the live allowance for the account's active
// subscription. Accounts without a customer or without an active/trialing
// subscription have allowance 0.
func (s *Service) allowanceFor(ctx context.Context, account *models.Account) (int, error) {
	if !account.HasStripeCustomer() {
		return 0, nil
	}
	snap, err := s.processor.FindActiveSubscription(ctx, *account.StripeCustomerID)
	if err != nil {
		if errors.Is(err, ErrNoActiveSubscription) {
			return 0, nil
		}
		return 0, err
	}
	return ComputeAllowance(snap.ProductMetadata, snap.Status == StatusTrialing), nil
}
