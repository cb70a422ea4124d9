package controllers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/tailorcv/tailorcv/app/models"
	"github.com/tailorcv/tailorcv/app/repository"
	"github.com/tailorcv/tailorcv/internal/pkg/billing"
	"github.com/tailorcv/tailorcv/internal/pkg/database"
	"github.com/tailorcv/tailorcv/internal/pkg/session"
	"github.com/tailorcv/tailorcv/internal/pkg/usercontext"
)

const resumesPerPage = 25

// HandleUserDashboard shows the credit balance, subscription state and the
// user's stored CVs.
func HandleUserDashboard(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repos := repository.GetGlobalFactory()
	account, err := repos.GetAccountRepository().EnsureForUser(userCtx.UserID)
	if err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not load your account"})
		return c.Redirect("/")
	}

	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	offset := (page - 1) * resumesPerPage

	resumes, err := repos.GetResumeRepository().GetByUserID(userCtx.UserID, offset, resumesPerPage)
	if err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not load your CVs"})
		return c.Redirect("/")
	}
	total, _ := repos.GetResumeRepository().CountByUserID(userCtx.UserID)

	// Allowance comes from Stripe product metadata; without billing the
	// dashboard still works off the mirrored account row.
	summary := billing.CreditSummary{
		Balance:  account.CreditBalance(),
		Status:   billing.ParseStatus(account.SubscriptionStatus),
		PlanName: account.PlanDisplayName(),
	}
	if svc, err := billingSvc(); err == nil {
		ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
		defer cancel()
		if s, err := svc.Credits(ctx, userCtx.UserID); err == nil {
			summary = *s
		}
	}

	return c.Render("user/dashboard", viewData(c, "Dashboard", fiber.Map{
		"Account":        account,
		"Credits":        summary,
		"Resumes":        resumes,
		"ResumeCount":    total,
		"Page":           page,
		"HasMore":        int64(offset+len(resumes)) < total,
		"BillingEnabled": billing.Enabled(),
	}), "layouts/main")
}

// HandleUserSettings renders the profile and API key settings page.
func HandleUserSettings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var user models.User
	if err := database.GetDB().First(&user, userCtx.UserID).Error; err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "User not found"})
		return c.Redirect("/")
	}

	settings, err := models.GetOrCreateUserSettings(database.GetDB(), userCtx.UserID)
	if err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not load your settings"})
		return c.Redirect("/dashboard")
	}

	return c.Render("user/settings", viewData(c, "Settings", fiber.Map{
		"User":     user,
		"Settings": settings,
	}), "layouts/main")
}

// HandleUserSettingsUpdate processes the profile form.
func HandleUserSettingsUpdate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var user models.User
	if err := database.GetDB().First(&user, userCtx.UserID).Error; err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "User not found"})
		return c.Redirect("/")
	}

	if name := c.FormValue("username"); name != "" && name != user.Name {
		user.Name = name
	}
	if password := c.FormValue("password"); password != "" {
		if err := user.SetPassword(password); err != nil {
			flash.WithError(c, fiber.Map{"type": "error", "message": "Password could not be updated"})
			return c.Redirect("/user/settings")
		}
	}

	if err := user.Validate(); err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Invalid profile data"})
		return c.Redirect("/user/settings")
	}
	if err := repository.GetGlobalFactory().GetUserRepository().Update(&user); err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not save your profile"})
		return c.Redirect("/user/settings")
	}

	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		sess.Set(USER_NAME, user.Name)
		_ = sess.Save()
	}

	flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Profile updated"})
	return c.Redirect("/user/settings")
}

// HandleAPIKeyGenerate issues a fresh API key. The raw key is shown exactly
// once; only its hash is stored.
func HandleAPIKeyGenerate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not load your settings"})
		return c.Redirect("/user/settings")
	}

	rawKey, err := settings.IssueAPIKey()
	if err != nil {
		log.Printf("[User] api key generation failed for user %d: %v", userCtx.UserID, err)
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not generate an API key"})
		return c.Redirect("/user/settings")
	}
	if err := db.Save(settings).Error; err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not store the API key"})
		return c.Redirect("/user/settings")
	}

	var user models.User
	_ = db.First(&user, userCtx.UserID).Error

	return c.Render("user/settings", viewData(c, "Settings", fiber.Map{
		"User":      user,
		"Settings":  settings,
		"NewAPIKey": rawKey,
	}), "layouts/main")
}

// HandleAPIKeyRevoke invalidates the current API key.
func HandleAPIKeyRevoke(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not load your settings"})
		return c.Redirect("/user/settings")
	}

	if !settings.HasActiveAPIKey() {
		flash.WithInfo(c, fiber.Map{"type": "info", "message": "No active API key to revoke"})
		return c.Redirect("/user/settings")
	}

	settings.RevokeAPIKey()
	if err := db.Save(settings).Error; err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not revoke the API key"})
		return c.Redirect("/user/settings")
	}

	flash.WithSuccess(c, fiber.Map{"type": "success", "message": "API key revoked"})
	return c.Redirect("/user/settings")
}

// HandleUserBillingResync recomputes the plan from the live subscription and
// refreshes the session cache. Useful when a webhook was missed.
func HandleUserBillingResync(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	svc, err := billingSvc()
	if err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Billing is not available right now"})
		return c.Redirect("/dashboard")
	}

	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()

	summary, err := svc.Credits(ctx, userCtx.UserID)
	if err != nil {
		if errors.Is(err, billing.ErrAccountNotFound) {
			flash.WithError(c, fiber.Map{"type": "error", "message": "No billing account found"})
			return c.Redirect("/dashboard")
		}
		flash.WithError(c, fiber.Map{"type": "error", "message": "Plan re-sync failed"})
		return c.Redirect("/dashboard")
	}

	plan := "free"
	if summary.Status.Entitling() {
		plan = summary.PlanName
	}
	_ = session.SetSessionValue(c, "user_plan", plan)

	flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Plan refreshed: " + plan})
	return c.Redirect("/dashboard")
}
