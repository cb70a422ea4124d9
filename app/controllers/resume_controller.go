package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/tailorcv/tailorcv/app/models"
	"github.com/tailorcv/tailorcv/app/repository"
	"github.com/tailorcv/tailorcv/internal/pkg/billing"
	"github.com/tailorcv/tailorcv/internal/pkg/metrics/counter"
	"github.com/tailorcv/tailorcv/internal/pkg/rewriter"
	"github.com/tailorcv/tailorcv/internal/pkg/statistics"
	"github.com/tailorcv/tailorcv/internal/pkg/usercontext"
)

// ownedResume loads the resume behind :uuid and verifies ownership.
func ownedResume(c *fiber.Ctx) (*models.Resume, error) {
	userCtx := usercontext.GetUserContext(c)
	uuid := c.Params("uuid")
	if uuid == "" {
		return nil, errors.New("missing resume id")
	}
	resume, err := repository.GetGlobalFactory().GetResumeRepository().GetByUUID(uuid)
	if err != nil || resume.UserID != userCtx.UserID {
		return nil, errors.New("resume not found")
	}
	return resume, nil
}

// HandleResumeNew renders the create form.
func HandleResumeNew(c *fiber.Ctx) error {
	return c.Render("resume/form", viewData(c, "New CV", fiber.Map{
		"Action": "/resumes",
	}), "layouts/main")
}

// HandleResumeCreate stores a new CV.
func HandleResumeCreate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	resume := &models.Resume{
		UserID: userCtx.UserID,
		Title:  c.FormValue("title"),
		Body:   c.FormValue("body"),
	}
	if err := resume.Validate(); err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Title and CV text are required"})
		return c.Redirect("/resumes/new")
	}

	if err := repository.GetGlobalFactory().GetResumeRepository().Create(resume); err != nil {
		log.Printf("[Resume] create failed for user %d: %v", userCtx.UserID, err)
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not save your CV"})
		return c.Redirect("/resumes/new")
	}

	go statistics.UpdateStatisticsCache()

	flash.WithSuccess(c, fiber.Map{"type": "success", "message": "CV saved"})
	return c.Redirect("/resumes/" + resume.UUID)
}

// HandleResumeView shows a CV with its latest tailored version side by side.
func HandleResumeView(c *fiber.Ctx) error {
	resume, err := ownedResume(c)
	if err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "CV not found"})
		return c.Redirect("/dashboard")
	}

	return c.Render("resume/view", viewData(c, resume.Title, fiber.Map{
		"Resume": resume,
	}), "layouts/main")
}

// HandleResumeEdit renders the edit form.
func HandleResumeEdit(c *fiber.Ctx) error {
	resume, err := ownedResume(c)
	if err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "CV not found"})
		return c.Redirect("/dashboard")
	}

	return c.Render("resume/form", viewData(c, "Edit "+resume.Title, fiber.Map{
		"Resume": resume,
		"Action": "/resumes/" + resume.UUID,
	}), "layouts/main")
}

// HandleResumeUpdate processes the edit form. Changing the CV text clears the
// tailored version because it no longer matches.
func HandleResumeUpdate(c *fiber.Ctx) error {
	resume, err := ownedResume(c)
	if err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "CV not found"})
		return c.Redirect("/dashboard")
	}

	if title := c.FormValue("title"); title != "" {
		resume.Title = title
	}
	if body := c.FormValue("body"); body != "" && body != resume.Body {
		resume.Body = body
		resume.RewrittenBody = ""
	}
	if err := resume.Validate(); err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Title and CV text are required"})
		return c.Redirect("/resumes/" + resume.UUID + "/edit")
	}

	if err := repository.GetGlobalFactory().GetResumeRepository().Update(resume); err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not save your changes"})
		return c.Redirect("/resumes/" + resume.UUID + "/edit")
	}

	flash.WithSuccess(c, fiber.Map{"type": "success", "message": "CV updated"})
	return c.Redirect("/resumes/" + resume.UUID)
}

// HandleResumeDelete removes a CV.
func HandleResumeDelete(c *fiber.Ctx) error {
	resume, err := ownedResume(c)
	if err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "CV not found"})
		return c.Redirect("/dashboard")
	}

	if err := repository.GetGlobalFactory().GetResumeRepository().Delete(resume.ID); err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not delete the CV"})
		return c.Redirect("/dashboard")
	}

	flash.WithSuccess(c, fiber.Map{"type": "success", "message": "CV deleted"})
	return c.Redirect("/dashboard")
}

// HandleResumeRewrite tailors the CV against the submitted job description.
// One rewrite costs one credit; the deduction happens before the rewrite as a
// single conditional update, so two concurrent requests cannot spend the same
// credit twice.
func HandleResumeRewrite(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	resume, err := ownedResume(c)
	if err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "CV not found"})
		return c.Redirect("/dashboard")
	}

	jobDescription := c.FormValue("job_description")
	if jobDescription == "" {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Paste a job description first"})
		return c.Redirect("/resumes/" + resume.UUID)
	}

	svc, err := billingSvc()
	if err != nil {
		flash.WithError(c, fiber.Map{"type": "error", "message": "Rewrites are not available right now"})
		return c.Redirect("/resumes/" + resume.UUID)
	}

	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()

	if _, err := svc.Deduct(ctx, userCtx.UserID, 1); err != nil {
		if errors.Is(err, billing.ErrInsufficientCredits) {
			flash.WithError(c, fiber.Map{"type": "error", "message": "You are out of credits. Upgrade your plan to keep tailoring."})
			return c.Redirect("/pricing")
		}
		log.Printf("[Resume] credit deduction failed for user %d: %v", userCtx.UserID, err)
		flash.WithError(c, fiber.Map{"type": "error", "message": "Could not start the rewrite"})
		return c.Redirect("/resumes/" + resume.UUID)
	}

	rewritten, result := rewriter.RewriteText(resume.Body, jobDescription)

	now := time.Now()
	resume.RewrittenBody = rewritten
	resume.JobDescription = jobDescription
	resume.LastRewriteAt = &now
	if err := repository.GetGlobalFactory().GetResumeRepository().Update(resume); err != nil {
		log.Printf("[Resume] failed to store rewrite for resume %d: %v", resume.ID, err)
		flash.WithError(c, fiber.Map{"type": "error", "message": "The rewrite could not be saved"})
		return c.Redirect("/resumes/" + resume.UUID)
	}

	// Rewrite counts are batched through Redis and flushed periodically.
	if err := counter.AddRewrite(resume.ID); err != nil {
		log.Printf("[Resume] failed to count rewrite for resume %d: %v", resume.ID, err)
	}

	return c.Render("resume/view", viewData(c, resume.Title, fiber.Map{
		"Resume":      resume,
		"Matches":     result.Matches,
		"Tips":        result.Improvements,
		"RewriteDone": true,
	}), "layouts/main")
}
