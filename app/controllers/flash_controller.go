package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
)

// HandleFlashRewriteRateLimit sets a flash error and redirects to the dashboard
func HandleFlashRewriteRateLimit(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type":    "error",
		"message": "Rewrite limit reached. Please wait a moment and try again.",
	}
	flash.WithError(c, fm)
	return c.Redirect("/dashboard", fiber.StatusSeeOther)
}

// HandleFlashError shows a generic error from query string
// Query: ?msg=...
func HandleFlashError(c *fiber.Ctx) error {
	msg := c.Query("msg", "Something went wrong. Please try again.")
	if len(msg) > 300 {
		msg = msg[:300]
	}
	fm := fiber.Map{
		"type":    "error",
		"message": msg,
	}
	flash.WithError(c, fm)
	return c.Redirect("/", fiber.StatusSeeOther)
}
