package controllers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tailorcv/tailorcv/app/repository"
	"github.com/tailorcv/tailorcv/internal/pkg/billing"
	"github.com/tailorcv/tailorcv/internal/pkg/env"
	"github.com/tailorcv/tailorcv/internal/pkg/statistics"
)

// HandleStart renders the marketing landing page.
func HandleStart(c *fiber.Ctx) error {
	appENV := env.GetEnv("APP_ENV", "prod")
	isDEV := appENV == "dev"

	statistics.UpdateCacheIfNeeded()
	stats := statistics.GetStatistics()

	return c.Render("home", viewData(c, "Tailor your CV to every job", fiber.Map{
		"IsDev":         isDEV,
		"TotalUsers":    stats.TotalUsers,
		"TotalResumes":  stats.TotalResumes,
		"TodayRewrites": stats.TodayRewrites,
	}), "layouts/main")
}

// HandlePricing renders the plan catalog. When billing is not configured the
// page still renders, with an empty catalog and a notice.
func HandlePricing(c *fiber.Ctx) error {
	var entries []billing.CatalogEntry
	if svc, err := billingSvc(); err == nil {
		ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
		defer cancel()

		entries, err = svc.Catalog(ctx)
		if err != nil {
			log.Printf("[Billing] failed to load catalog: %v", err)
			entries = nil
		}
	}

	return c.Render("pricing", viewData(c, "Pricing", fiber.Map{
		"Plans":          entries,
		"BillingEnabled": billing.Enabled(),
	}), "layouts/main")
}

// HandlePageDisplay renders a CMS page such as privacy or terms.
func HandlePageDisplay(c *fiber.Ctx) error {
	slug := c.Params("slug")

	page, err := repository.GetGlobalFactory().GetPageRepository().GetBySlug(slug)
	if err != nil {
		return c.Status(fiber.StatusNotFound).Render("error", viewData(c, "Not found", fiber.Map{
			"Message": "The page you are looking for does not exist.",
		}), "layouts/main")
	}

	return c.Render("page", viewData(c, page.Title, fiber.Map{
		"Page": page,
	}), "layouts/main")
}

// HandleError renders the generic error page. Fatal checkout errors land here.
func HandleError(c *fiber.Ctx) error {
	msg := c.Query("msg", "Something went wrong. Please try again.")
	if len(msg) > 300 {
		msg = msg[:300]
	}

	return c.Render("error", viewData(c, "Error", fiber.Map{
		"Message": msg,
	}), "layouts/main")
}
