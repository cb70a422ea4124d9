package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tailorcv/tailorcv/app/models"
)

// fakeStore is an in-memory AccountStore with the same conditional-update
// semantics as the GORM implementation.
type fakeStore struct {
	accounts map[uint]*models.Account
	calls    int
}

func newFakeStore(accounts ...*models.Account) *fakeStore {
	s := &fakeStore{accounts: map[uint]*models.Account{}}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, id uint) (*models.Account, error) {
	s.calls++
	if a, ok := s.accounts[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("account %d: %w", id, ErrAccountNotFound)
}

func (s *fakeStore) GetByUserID(_ context.Context, userID uint) (*models.Account, error) {
	s.calls++
	for _, a := range s.accounts {
		if a.UserID == userID {
			return a, nil
		}
	}
	a := &models.Account{ID: uint(len(s.accounts) + 1), UserID: userID, SubscriptionStatus: models.SubscriptionStatusNone}
	s.accounts[a.ID] = a
	return a, nil
}

func (s *fakeStore) GetByCustomerID(_ context.Context, customerID string) (*models.Account, error) {
	s.calls++
	for _, a := range s.accounts {
		if a.StripeCustomerID != nil && *a.StripeCustomerID == customerID {
			return a, nil
		}
	}
	return nil, fmt.Errorf("customer %s: %w", customerID, ErrAccountNotFound)
}

func (s *fakeStore) UpdateSubscriptionFields(_ context.Context, accountID uint, patch AccountPatch) error {
	s.calls++
	a, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	if patch.CustomerID != nil {
		a.StripeCustomerID = patch.CustomerID
	}
	a.StripeSubscriptionID = patch.SubscriptionID
	a.StripeProductID = patch.ProductID
	a.PlanName = patch.PlanName
	a.SubscriptionStatus = string(patch.Status)
	if patch.ClearCredits {
		a.Credits = nil
	}
	return nil
}

func (s *fakeStore) SetCreditsByCustomerID(ctx context.Context, customerID string, credits int) error {
	a, err := s.GetByCustomerID(ctx, customerID)
	if err != nil {
		return err
	}
	a.Credits = &credits
	return nil
}

func (s *fakeStore) AddCreditsIfAvailable(_ context.Context, accountID uint, delta, allowance int) (int, error) {
	s.calls++
	a, ok := s.accounts[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	next := a.CreditBalance() + delta
	if next > allowance {
		return a.CreditBalance(), ErrAllowanceExceeded
	}
	a.Credits = &next
	return next, nil
}

func (s *fakeStore) DeductCredits(_ context.Context, accountID uint, delta int) (int, error) {
	s.calls++
	a, ok := s.accounts[accountID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if a.CreditBalance() < delta {
		return a.CreditBalance(), ErrInsufficientCredits
	}
	next := a.CreditBalance() - delta
	a.Credits = &next
	return next, nil
}

// fakeProcessor returns canned responses; the webhook gate is driven by the
// event/verifyErr pair.
type fakeProcessor struct {
	event        *Event
	verifyErr    error
	subscription *SubscriptionSnapshot
	retrieveErr  error
	session      *CheckoutSession
	catalog      []CatalogEntry
	checkoutURL  string
	portalURL    string
}

func (p *fakeProcessor) NewCheckoutSession(context.Context, CheckoutParams) (string, error) {
	return p.checkoutURL, nil
}

func (p *fakeProcessor) RetrieveCheckoutSession(context.Context, string) (*CheckoutSession, error) {
	if p.session == nil {
		return nil, errors.New("no session")
	}
	return p.session, nil
}

func (p *fakeProcessor) RetrieveSubscription(context.Context, string) (*SubscriptionSnapshot, error) {
	if p.retrieveErr != nil {
		return nil, p.retrieveErr
	}
	return p.subscription, nil
}

func (p *fakeProcessor) FindActiveSubscription(context.Context, string) (*SubscriptionSnapshot, error) {
	if p.subscription == nil || !p.subscription.Status.Entitling() {
		return nil, ErrNoActiveSubscription
	}
	return p.subscription, nil
}

func (p *fakeProcessor) ListCatalog(context.Context) ([]CatalogEntry, error) {
	return p.catalog, nil
}

func (p *fakeProcessor) NewPortalSession(context.Context, string) (string, error) {
	return p.portalURL, nil
}

func (p *fakeProcessor) VerifyWebhook([]byte, string) (*Event, error) {
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	return p.event, nil
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func linkedAccount(credits *int, status string) *models.Account {
	return &models.Account{
		ID:                   1,
		UserID:               10,
		StripeCustomerID:     strPtr("cus_1"),
		StripeSubscriptionID: strPtr("sub_1"),
		StripeProductID:      strPtr("prod_1"),
		PlanName:             strPtr("Pro"),
		SubscriptionStatus:   status,
		Credits:              credits,
	}
}

func newTestService(store AccountStore, proc ProcessorClient) (*Service, *map[string]int) {
	counts := map[string]int{}
	svc := NewService(store, proc, func(class string) { counts[class]++ })
	return svc, &counts
}

func TestHandleWebhookInvalidSignature(t *testing.T) {
	store := newFakeStore(linkedAccount(intPtr(5), models.SubscriptionStatusActive))
	proc := &fakeProcessor{verifyErr: fmt.Errorf("%w: bad mac", ErrInvalidSignature)}
	svc, counts := newTestService(store, proc)

	err := svc.HandleWebhook(context.Background(), []byte("{}"), "t=1,v1=bad")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("store must not be touched on a rejected signature, saw %d calls", store.calls)
	}
	if len(*counts) != 0 {
		t.Fatalf("signature failures are rejections, not swallows: %v", *counts)
	}
}

func TestHandleWebhookIgnoredType(t *testing.T) {
	store := newFakeStore()
	proc := &fakeProcessor{event: &Event{ID: "evt_1", Type: EventIgnored, RawType: "invoice.payment_failed"}}
	svc, _ := newTestService(store, proc)

	if err := svc.HandleWebhook(context.Background(), nil, ""); err != nil {
		t.Fatalf("ignored events must be acknowledged, got %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("ignored events must not touch the store")
	}
}

func TestHandleWebhookSubscriptionUpdatedPreservesCredits(t *testing.T) {
	account := linkedAccount(intPtr(7), models.SubscriptionStatusTrialing)
	store := newFakeStore(account)
	proc := &fakeProcessor{event: &Event{
		ID:      "evt_1",
		Type:    EventSubscriptionUpdated,
		RawType: "customer.subscription.updated",
		Subscription: &SubscriptionSnapshot{
			ID:         "sub_1",
			CustomerID: "cus_1",
			Status:     StatusActive,
			ProductID:  "prod_1",
			PlanName:   "Pro",
		},
	}}
	svc, counts := newTestService(store, proc)

	if err := svc.HandleWebhook(context.Background(), nil, ""); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if account.SubscriptionStatus != models.SubscriptionStatusActive {
		t.Fatalf("status = %q, want active", account.SubscriptionStatus)
	}
	if account.CreditBalance() != 7 {
		t.Fatalf("trialing→active must not touch credits, balance = %d", account.CreditBalance())
	}
	if len(*counts) != 0 {
		t.Fatalf("unexpected swallows: %v", *counts)
	}
}

func TestHandleWebhookSubscriptionDeletedClearsEverything(t *testing.T) {
	account := linkedAccount(intPtr(7), models.SubscriptionStatusActive)
	store := newFakeStore(account)
	proc := &fakeProcessor{event: &Event{
		ID:      "evt_1",
		Type:    EventSubscriptionDeleted,
		RawType: "customer.subscription.deleted",
		Subscription: &SubscriptionSnapshot{
			ID:         "sub_1",
			CustomerID: "cus_1",
			Status:     StatusCanceled,
		},
	}}
	svc, _ := newTestService(store, proc)

	if err := svc.HandleWebhook(context.Background(), nil, ""); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if account.Credits != nil {
		t.Fatalf("credits = %v, want null", *account.Credits)
	}
	if account.StripeSubscriptionID != nil || account.StripeProductID != nil || account.PlanName != nil {
		t.Fatalf("subscription fields must clear together")
	}
	if account.SubscriptionStatus != models.SubscriptionStatusCanceled {
		t.Fatalf("status = %q, want canceled", account.SubscriptionStatus)
	}
}

func TestHandleWebhookAccountNotFoundSwallowed(t *testing.T) {
	store := newFakeStore() // nobody linked to cus_ghost
	proc := &fakeProcessor{event: &Event{
		ID:      "evt_1",
		Type:    EventSubscriptionUpdated,
		RawType: "customer.subscription.updated",
		Subscription: &SubscriptionSnapshot{
			ID:         "sub_1",
			CustomerID: "cus_ghost",
			Status:     StatusActive,
			ProductID:  "prod_1",
		},
	}}
	svc, counts := newTestService(store, proc)

	if err := svc.HandleWebhook(context.Background(), nil, ""); err != nil {
		t.Fatalf("missing accounts must be swallowed, got %v", err)
	}
	if (*counts)[SwallowAccountNotFound] != 1 {
		t.Fatalf("expected one account_not_found swallow, got %v", *counts)
	}
}

func invoicePaidEvent() *Event {
	return &Event{
		ID:             "evt_inv",
		Type:           EventInvoicePaid,
		RawType:        "invoice.paid",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
	}
}

func TestHandleWebhookInvoicePaidDuplicateConverges(t *testing.T) {
	account := linkedAccount(intPtr(3), models.SubscriptionStatusActive)
	store := newFakeStore(account)
	proc := &fakeProcessor{
		event: invoicePaidEvent(),
		subscription: &SubscriptionSnapshot{
			ID:              "sub_1",
			CustomerID:      "cus_1",
			Status:          StatusActive,
			ProductID:       "prod_1",
			PlanName:        "Pro",
			ProductMetadata: map[string]string{"credits_allowance": "25"},
		},
	}
	svc, counts := newTestService(store, proc)

	for i := 0; i < 2; i++ {
		if err := svc.HandleWebhook(context.Background(), nil, ""); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}
	if account.CreditBalance() != 25 {
		t.Fatalf("balance = %d after duplicate delivery, want the plain allowance 25", account.CreditBalance())
	}
	if len(*counts) != 0 {
		t.Fatalf("unexpected swallows: %v", *counts)
	}
}

func TestHandleWebhookInvoicePaidFailSafeZero(t *testing.T) {
	account := linkedAccount(intPtr(9), models.SubscriptionStatusActive)
	store := newFakeStore(account)
	proc := &fakeProcessor{
		event:       invoicePaidEvent(),
		retrieveErr: errors.New("processor unavailable"),
	}
	svc, counts := newTestService(store, proc)

	if err := svc.HandleWebhook(context.Background(), nil, ""); err != nil {
		t.Fatalf("processing failures must be swallowed, got %v", err)
	}
	// Step one zeroed the balance; the failed re-fetch must leave it there
	// instead of restoring the stale value.
	if account.CreditBalance() != 0 {
		t.Fatalf("balance = %d, want fail-safe 0", account.CreditBalance())
	}
	if (*counts)[SwallowProcessing] != 1 {
		t.Fatalf("expected one processing swallow, got %v", *counts)
	}
}

func TestHandleWebhookInvoicePaidTrialUsesTrialCredits(t *testing.T) {
	account := linkedAccount(nil, models.SubscriptionStatusTrialing)
	store := newFakeStore(account)
	proc := &fakeProcessor{
		event: invoicePaidEvent(),
		subscription: &SubscriptionSnapshot{
			ID:              "sub_1",
			CustomerID:      "cus_1",
			Status:          StatusTrialing,
			ProductID:       "prod_1",
			PlanName:        "Pro",
			ProductMetadata: map[string]string{"credits_allowance": "25", "trial_period_credits": "5"},
		},
	}
	svc, _ := newTestService(store, proc)

	if err := svc.HandleWebhook(context.Background(), nil, ""); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if account.CreditBalance() != 5 {
		t.Fatalf("balance = %d, want trial allowance 5", account.CreditBalance())
	}
}

func TestConfirmCheckout(t *testing.T) {
	store := newFakeStore(&models.Account{ID: 1, UserID: 10, SubscriptionStatus: models.SubscriptionStatusNone})
	proc := &fakeProcessor{
		session: &CheckoutSession{
			ID:                "cs_1",
			CustomerID:        "cus_1",
			SubscriptionID:    "sub_1",
			ClientReferenceID: "10",
		},
		subscription: &SubscriptionSnapshot{
			ID:         "sub_1",
			CustomerID: "cus_1",
			Status:     StatusActive,
			ProductID:  "prod_1",
			PlanName:   "Pro",
		},
	}
	svc, _ := newTestService(store, proc)

	account, err := svc.ConfirmCheckout(context.Background(), "cs_1")
	if err != nil {
		t.Fatalf("ConfirmCheckout: %v", err)
	}
	if account.StripeCustomerID == nil || *account.StripeCustomerID != "cus_1" {
		t.Fatalf("customer id not linked")
	}
	if account.StripeSubscriptionID == nil || *account.StripeSubscriptionID != "sub_1" {
		t.Fatalf("subscription id not persisted")
	}
	if account.SubscriptionStatus != models.SubscriptionStatusActive {
		t.Fatalf("status = %q, want active", account.SubscriptionStatus)
	}
	// First allocation belongs to the invoice.paid path.
	if account.Credits != nil {
		t.Fatalf("checkout must not set credits, got %d", *account.Credits)
	}
}

func TestConfirmCheckoutIncompleteData(t *testing.T) {
	sessions := []*CheckoutSession{
		{ID: "cs_1", SubscriptionID: "sub_1", ClientReferenceID: "10"}, // no customer
		{ID: "cs_1", CustomerID: "cus_1", ClientReferenceID: "10"},    // no subscription
		{ID: "cs_1", CustomerID: "cus_1", SubscriptionID: "sub_1"},    // no reference
		{ID: "cs_1", CustomerID: "cus_1", SubscriptionID: "sub_1", ClientReferenceID: "not-a-number"},
	}

	for i, sess := range sessions {
		store := newFakeStore()
		proc := &fakeProcessor{session: sess, subscription: &SubscriptionSnapshot{Status: StatusActive, ProductID: "prod_1"}}
		svc, _ := newTestService(store, proc)

		if _, err := svc.ConfirmCheckout(context.Background(), "cs_1"); !errors.Is(err, ErrIncompleteCheckoutData) {
			t.Fatalf("case %d: expected ErrIncompleteCheckoutData, got %v", i, err)
		}
	}
}

func TestCommitRespectsAllowance(t *testing.T) {
	account := linkedAccount(intPtr(20), models.SubscriptionStatusActive)
	store := newFakeStore(account)
	proc := &fakeProcessor{
		subscription: &SubscriptionSnapshot{
			ID:              "sub_1",
			Status:          StatusActive,
			ProductMetadata: map[string]string{"credits_allowance": "25"},
		},
	}
	svc, _ := newTestService(store, proc)

	balance, err := svc.Commit(context.Background(), 10, 5)
	if err != nil || balance != 25 {
		t.Fatalf("Commit(5) = %d, %v, want 25, nil", balance, err)
	}
	if _, err := svc.Commit(context.Background(), 10, 1); !errors.Is(err, ErrAllowanceExceeded) {
		t.Fatalf("expected ErrAllowanceExceeded at the cap, got %v", err)
	}
}

func TestReserveDoesNotMutate(t *testing.T) {
	account := linkedAccount(intPtr(20), models.SubscriptionStatusActive)
	store := newFakeStore(account)
	proc := &fakeProcessor{
		subscription: &SubscriptionSnapshot{
			ID:              "sub_1",
			Status:          StatusActive,
			ProductMetadata: map[string]string{"credits_allowance": "25"},
		},
	}
	svc, _ := newTestService(store, proc)

	if err := svc.Reserve(context.Background(), 10, 5); err != nil {
		t.Fatalf("Reserve(5): %v", err)
	}
	if err := svc.Reserve(context.Background(), 10, 6); !errors.Is(err, ErrAllowanceExceeded) {
		t.Fatalf("expected ErrAllowanceExceeded, got %v", err)
	}
	if account.CreditBalance() != 20 {
		t.Fatalf("Reserve mutated the balance: %d", account.CreditBalance())
	}
}

func TestDeductInsufficient(t *testing.T) {
	account := linkedAccount(intPtr(2), models.SubscriptionStatusActive)
	store := newFakeStore(account)
	svc, _ := newTestService(store, &fakeProcessor{})

	if _, err := svc.Deduct(context.Background(), 10, 5); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if account.CreditBalance() != 2 {
		t.Fatalf("balance changed on rejected deduct: %d", account.CreditBalance())
	}
}
