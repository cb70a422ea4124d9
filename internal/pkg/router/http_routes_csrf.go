package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/tailorcv/tailorcv/app/controllers"
	"github.com/tailorcv/tailorcv/internal/pkg/env"
	"github.com/tailorcv/tailorcv/internal/pkg/middleware"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
	}

	// Rewrites are the expensive operation; cap them per client on top of
	// the credit ledger.
	rewriteLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Redirect("/flash/rewrite-rate-limit", fiber.StatusSeeOther)
		},
	})

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/", loggedInMiddleware, controllers.HandleStart)
	group.Get("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Post("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Get("/register", loggedInMiddleware, controllers.HandleAuthRegister)
	group.Post("/register", loggedInMiddleware, controllers.HandleAuthRegister)

	group.Get("/dashboard", middleware.RequireAuth, controllers.HandleUserDashboard)
	group.Get("/user/settings", middleware.RequireAuth, controllers.HandleUserSettings)
	group.Post("/user/settings", middleware.RequireAuth, controllers.HandleUserSettingsUpdate)
	group.Post("/user/settings/api-key", middleware.RequireAuth, controllers.HandleAPIKeyGenerate)
	group.Post("/user/settings/api-key/revoke", middleware.RequireAuth, controllers.HandleAPIKeyRevoke)
	group.Post("/user/billing/resync", middleware.RequireAuth, controllers.HandleUserBillingResync)

	// Stored CVs
	group.Get("/resumes/new", middleware.RequireAuth, controllers.HandleResumeNew)
	group.Post("/resumes", middleware.RequireAuth, controllers.HandleResumeCreate)
	group.Get("/resumes/:uuid", middleware.RequireAuth, controllers.HandleResumeView)
	group.Get("/resumes/:uuid/edit", middleware.RequireAuth, controllers.HandleResumeEdit)
	group.Post("/resumes/:uuid", middleware.RequireAuth, controllers.HandleResumeUpdate)
	group.Post("/resumes/:uuid/delete", middleware.RequireAuth, controllers.HandleResumeDelete)
	group.Post("/resumes/:uuid/rewrite", middleware.RequireAuth, rewriteLimiter, controllers.HandleResumeRewrite)

	// Billing
	group.Post("/billing/checkout", middleware.RequireAuth, controllers.HandleCheckoutStart)
	group.Post("/billing/portal", middleware.RequireAuth, controllers.HandleBillingPortal)

	// Ops
	group.Get("/admin/billing/swallowed", middleware.RequireAdmin, controllers.HandleAdminBillingSwallowed)
}
