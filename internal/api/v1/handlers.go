package apiv1

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tailorcv/tailorcv/app/repository"
	"github.com/tailorcv/tailorcv/internal/pkg/billing"
	"github.com/tailorcv/tailorcv/internal/pkg/metrics/counter"
	"github.com/tailorcv/tailorcv/internal/pkg/usercontext"
)

// APIServer holds the public v1 endpoints.
type APIServer struct{}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{}
}

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// CreditAdjustment is the request body of the credit mutation endpoints.
type CreditAdjustment struct {
	Amount int `json:"amount"`
}

// RegisterHandlers wires the v1 routes. Everything except ping requires an
// API key.
func RegisterHandlers(router fiber.Router, s *APIServer, apiKeyAuth fiber.Handler) {
	router.Get("/ping", s.GetPing)

	authed := router.Group("", apiKeyAuth)
	authed.Get("/credits", s.GetCredits)
	authed.Post("/credits/reserve", s.PostCreditsReserve)
	authed.Post("/credits/commit", s.PostCreditsCommit)
	authed.Post("/credits/deduct", s.PostCreditsDeduct)
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetCredits returns the caller's balance, live allowance and plan.
func (s *APIServer) GetCredits(c *fiber.Ctx) error {
	svc, err := billingService()
	if err != nil {
		return billingError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	summary, err := svc.Credits(ctx, usercontext.GetUserID(c))
	if err != nil {
		return billingError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(summary)
}

// PostCreditsReserve checks whether the adjustment would fit under the live
// allowance. It mutates nothing; only commit is authoritative.
func (s *APIServer) PostCreditsReserve(c *fiber.Ctx) error {
	adj, err := parseAdjustment(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}
	svc, err := billingService()
	if err != nil {
		return billingError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := svc.Reserve(ctx, usercontext.GetUserID(c), adj.Amount); err != nil {
		return billingError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"available": true})
}

// PostCreditsCommit grants credits up to the live allowance.
func (s *APIServer) PostCreditsCommit(c *fiber.Ctx) error {
	adj, err := parseAdjustment(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}
	svc, err := billingService()
	if err != nil {
		return billingError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	balance, err := svc.Commit(ctx, usercontext.GetUserID(c), adj.Amount)
	if err != nil {
		return billingError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"balance": balance})
}

// PostCreditsDeduct spends credits.
func (s *APIServer) PostCreditsDeduct(c *fiber.Ctx) error {
	adj, err := parseAdjustment(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}
	svc, err := billingService()
	if err != nil {
		return billingError(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	balance, err := svc.Deduct(ctx, usercontext.GetUserID(c), adj.Amount)
	if err != nil {
		return billingError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"balance": balance})
}

func billingService() (*billing.Service, error) {
	store := repository.GetGlobalFactory().GetAccountRepository()
	return billing.NewServiceFromEnv(store, counter.AddBillingSwallowed)
}

func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context(), 15*time.Second)
}

func parseAdjustment(c *fiber.Ctx) (CreditAdjustment, error) {
	var adj CreditAdjustment
	if err := c.BodyParser(&adj); err != nil {
		return adj, errors.New("invalid JSON body")
	}
	if adj.Amount <= 0 {
		return adj, errors.New("amount must be positive")
	}
	return adj, nil
}

// billingError maps service errors onto API status codes.
func billingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrBillingDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing_disabled"})
	case errors.Is(err, billing.ErrAccountNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account_not_found"})
	case errors.Is(err, billing.ErrInsufficientCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "insufficient_credits"})
	case errors.Is(err, billing.ErrAllowanceExceeded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "allowance_exceeded"})
	case errors.Is(err, billing.ErrInvalidAdjustment):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "amount must be positive"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
}
