package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tailorcv/tailorcv/internal/pkg/middleware"
	"github.com/tailorcv/tailorcv/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func loggedInMiddleware(c *fiber.Ctx) error {
	// UserContextMiddleware already set all user context; this middleware
	// just passes through. User information is available via
	// usercontext.GetUserContext(c).
	return c.Next()
}
