package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tailorcv/tailorcv/app/controllers"
	"github.com/tailorcv/tailorcv/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Public marketing pages
	app.Get("/pricing", loggedInMiddleware, controllers.HandlePricing)
	app.Get("/error", loggedInMiddleware, controllers.HandleError)

	// Public page display
	app.Get("/page/:slug", loggedInMiddleware, controllers.HandlePageDisplay)

	// Flash helpers
	app.Get("/flash/rewrite-rate-limit", loggedInMiddleware, controllers.HandleFlashRewriteRateLimit)
	app.Get("/flash/error", loggedInMiddleware, controllers.HandleFlashError)

	// Auth
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Stripe checkout return URL. Stripe redirects here with a GET, so it
	// stays outside the CSRF group.
	app.Get("/billing/checkout", controllers.HandleCheckoutReturn)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}
