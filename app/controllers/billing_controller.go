package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/tailorcv/tailorcv/app/repository"
	"github.com/tailorcv/tailorcv/internal/pkg/billing"
	"github.com/tailorcv/tailorcv/internal/pkg/metrics/counter"
	"github.com/tailorcv/tailorcv/internal/pkg/session"
	"github.com/tailorcv/tailorcv/internal/pkg/usercontext"
)

// billingSvc builds the billing service for a single request. Returns
// billing.ErrBillingDisabled when Stripe is not configured.
func billingSvc() (*billing.Service, error) {
	store := repository.GetGlobalFactory().GetAccountRepository()
	return billing.NewServiceFromEnv(store, counter.AddBillingSwallowed)
}

// HandleStripeWebhook receives webhook deliveries from Stripe. The signature
// check is the only gate; everything after it is acknowledged so Stripe does
// not retry events we have already mirrored or chosen to skip.
func HandleStripeWebhook(c *fiber.Ctx) error {
	svc, err := billingSvc()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing_disabled"})
	}

	payload := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := svc.HandleWebhook(ctx, payload, signature); err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

// HandleCheckoutStart creates a Stripe Checkout session for the selected
// price and redirects the user there. Users with a live subscription are sent
// to the customer portal instead.
func HandleCheckoutStart(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	svc, err := billingSvc()
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Billing is not available right now"}).Redirect("/pricing")
	}

	priceID := strings.TrimSpace(c.FormValue("price_id"))
	if priceID == "" {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "No plan selected"}).Redirect("/pricing")
	}

	ctx, cancel := context.WithTimeout(c.Context(), 20*time.Second)
	defer cancel()

	url, err := svc.StartCheckout(ctx, userCtx.UserID, priceID)
	if err != nil {
		log.Printf("[Billing] checkout start failed for user %d: %v", userCtx.UserID, err)
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not start checkout. Please try again."}).Redirect("/pricing")
	}

	return c.Redirect(url, fiber.StatusSeeOther)
}

// HandleCheckoutReturn is the success URL of Stripe Checkout. It links the
// Stripe customer and subscription to the account referenced by the session.
// Credits are not granted here; the invoice.paid webhook does that.
func HandleCheckoutReturn(c *fiber.Ctx) error {
	svc, err := billingSvc()
	if err != nil {
		return c.Redirect("/error?msg=Billing+is+not+available+right+now", fiber.StatusSeeOther)
	}

	sessionID := strings.TrimSpace(c.Query("session_id"))

	ctx, cancel := context.WithTimeout(c.Context(), 20*time.Second)
	defer cancel()

	account, err := svc.ConfirmCheckout(ctx, sessionID)
	if err != nil {
		if errors.Is(err, billing.ErrIncompleteCheckoutData) {
			log.Printf("[Billing] incomplete checkout session %s: %v", sessionID, err)
			return c.Redirect("/error?msg=We+could+not+complete+your+checkout.+Please+contact+support.", fiber.StatusSeeOther)
		}
		log.Printf("[Billing] checkout confirmation failed for session %s: %v", sessionID, err)
		return c.Redirect("/error?msg=Something+went+wrong+while+confirming+your+subscription.", fiber.StatusSeeOther)
	}

	// The hop to Stripe can outlive the browser session. Sign the account's
	// user back in so the redirect does not bounce off the auth check.
	if user, uerr := repository.GetGlobalFactory().GetUserRepository().GetByID(account.UserID); uerr == nil {
		if sess, serr := session.GetSessionStore().Get(c); serr == nil {
			setAuthSession(sess, user)
			if serr := sess.Save(); serr != nil {
				log.Printf("[Billing] session save failed after checkout for user %d: %v", account.UserID, serr)
			}
		}
	} else {
		log.Printf("[Billing] user lookup failed after checkout for account %d: %v", account.ID, uerr)
	}

	plan := "free"
	if account.IsSubscribed() {
		plan = account.PlanDisplayName()
	}
	_ = session.SetSessionValue(c, "user_plan", plan)

	return flash.WithSuccess(c, fiber.Map{
		"type":    "success",
		"message": "Subscription active. Your credits arrive as soon as the first invoice settles.",
	}).Redirect("/dashboard")
}

// HandleAdminBillingSwallowed reports the per-class counters of swallowed
// webhook errors. A sustained non-zero rate on a class means accounts are
// silently not reconciling, so this is the endpoint an operator checks first.
func HandleAdminBillingSwallowed(c *fiber.Ctx) error {
	totals, err := counter.BillingSwallowedTotals()
	if err != nil {
		log.Printf("[Billing] swallowed counter read failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "counters_unavailable"})
	}
	return c.JSON(fiber.Map{"swallowed": totals})
}

// HandleBillingPortal redirects a subscribed user to the Stripe customer
// portal where they can manage or cancel their subscription.
func HandleBillingPortal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	svc, err := billingSvc()
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Billing is not available right now"}).Redirect("/dashboard")
	}

	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()

	url, err := svc.PortalURL(ctx, userCtx.UserID)
	if err != nil {
		if errors.Is(err, billing.ErrNoActiveSubscription) {
			return flash.WithError(c, fiber.Map{"type": "error", "message": "No subscription to manage yet"}).Redirect("/pricing")
		}
		log.Printf("[Billing] portal session failed for user %d: %v", userCtx.UserID, err)
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not open the billing portal"}).Redirect("/dashboard")
	}

	return c.Redirect(url, fiber.StatusSeeOther)
}
