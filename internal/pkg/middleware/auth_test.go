package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/tailorcv/tailorcv/internal/pkg/usercontext"
)

func localsApp(handler fiber.Handler, loggedIn, isAdmin bool) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(usercontext.KeyFromProtected, loggedIn)
		c.Locals(usercontext.KeyIsAdmin, isAdmin)
		return c.Next()
	})
	app.Get("/guarded", handler, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name     string
		loggedIn bool
		want     int
	}{
		{name: "anonymous redirected", loggedIn: false, want: http.StatusSeeOther},
		{name: "logged in passes", loggedIn: true, want: http.StatusOK},
	}

	for _, tt := range tests {
		app := localsApp(RequireAuth, tt.loggedIn, false)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/guarded", nil))
		if err != nil {
			t.Fatalf("%s: request failed: %v", tt.name, err)
		}
		if resp.StatusCode != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.want)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name     string
		loggedIn bool
		isAdmin  bool
		want     int
	}{
		{name: "anonymous redirected", loggedIn: false, isAdmin: false, want: http.StatusSeeOther},
		{name: "non-admin redirected", loggedIn: true, isAdmin: false, want: http.StatusSeeOther},
		{name: "admin passes", loggedIn: true, isAdmin: true, want: http.StatusOK},
	}

	for _, tt := range tests {
		app := localsApp(RequireAdmin, tt.loggedIn, tt.isAdmin)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/guarded", nil))
		if err != nil {
			t.Fatalf("%s: request failed: %v", tt.name, err)
		}
		if resp.StatusCode != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.want)
		}
	}
}
