package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	fsession "github.com/gofiber/fiber/v2/middleware/session"

	"github.com/tailorcv/tailorcv/app/models"
)

// A fresh session signed in via setAuthSession must authenticate the next
// request, e.g. when the checkout return re-establishes an expired login
// before redirecting to the dashboard.
func TestSetAuthSessionAuthenticatesFollowUpRequest(t *testing.T) {
	app := fiber.New()
	store := fsession.New()

	app.Get("/signin", func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return err
		}
		setAuthSession(sess, &models.User{ID: 7, Name: "dana", Role: models.ROLE_ADMIN})
		if err := sess.Save(); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/check", func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return err
		}
		if authed, ok := sess.Get(AUTH_KEY).(bool); !ok || !authed {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		if id, ok := sess.Get(USER_ID).(uint); !ok || id != 7 {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		if name, ok := sess.Get(USER_NAME).(string); !ok || name != "dana" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		if isAdmin, ok := sess.Get(USER_IS_ADMIN).(bool); !ok || !isAdmin {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/signin", nil))
	if err != nil {
		t.Fatalf("signin request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signin status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		t.Fatalf("signin set no session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/check", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("check request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check status = %d, want %d: session keys did not survive", resp.StatusCode, http.StatusOK)
	}
}

// An untouched session must not authenticate.
func TestUnsignedSessionRejected(t *testing.T) {
	app := fiber.New()
	store := fsession.New()

	app.Get("/check", func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return err
		}
		if authed, ok := sess.Get(AUTH_KEY).(bool); !ok || !authed {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/check", nil))
	if err != nil {
		t.Fatalf("check request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("check status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}
