package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"audiototext/api-gateway/config"
	"audiototext/api-gateway/internal/billing"
	"audiototext/api-gateway/middleware"
	"audiototext/api-gateway/models"
	"audiototext/api-gateway/utils"
)

// refreshWait gives the billing provider's webhook a moment to land before
// the plan state is re-read. The redirect home happens after it regardless
// of the reconcile outcome; the user is never stuck on the landing.
const refreshWait = 2 * time.Second

// CreateCheckoutRequest names the plan tier the caller wants to move to.
type CreateCheckoutRequest struct {
	Plan models.PlanTier `json:"plan" validate:"required"`
}

// CreateCheckout godoc
// @Summary Open a checkout session for a plan upgrade
// @Description Validates the target tier locally and returns the hosted checkout URL. Payment completion arrives asynchronously via the redirect landings.
// @Tags billing
// @Accept  json
// @Produce  json
// @Param   payload body CreateCheckoutRequest true "Target plan"
// @Success 200 {object} map[string]interface{} "Checkout URL"
// @Failure 409 {object} map[string]interface{} "Already on that plan or tier not purchasable"
// @Router /billing/checkout [post]
func (h *ApplicationHandler) CreateCheckout(c *fiber.Ctx) error {
	identity := middleware.Identity(c)

	payload := new(CreateCheckoutRequest)
	if err := c.BodyParser(payload); err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
	}
	if err := validate.Struct(payload); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return utils.RespondWithError(c, fiber.StatusBadRequest,
				fmt.Sprintf("Validation failed: %v", utils.FormatValidationErrors(err)))
		}
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Validation failed")
	}
	if !payload.Plan.Valid() {
		return utils.RespondWithError(c, fiber.StatusBadRequest, fmt.Sprintf("Unknown plan %q", payload.Plan))
	}

	url, err := h.Billing.InitiateUpgrade(c.Context(), identity, payload.Plan)
	if err != nil {
		// Both local validations are informational, not error states: the
		// caller simply has nothing to buy.
		if errors.Is(err, billing.ErrAlreadyOnPlan) {
			return utils.RespondWithError(c, fiber.StatusConflict, "You are already on this plan")
		}
		if errors.Is(err, billing.ErrNotPurchasable) {
			return utils.RespondWithError(c, fiber.StatusConflict, "This plan cannot be purchased directly")
		}
		h.Logger.Errorf("Checkout initiation failed for %s: %v", identity, err)
		return utils.RespondWithError(c, fiber.StatusBadGateway, "Could not open a checkout session")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"url": url})
}

// ReconcileBilling re-derives plan and allotment from the billing provider.
// Failures are reported but the caller's UI keeps its last-known plan state.
func (h *ApplicationHandler) ReconcileBilling(c *fiber.Ctx) error {
	identity := middleware.Identity(c)

	if err := h.Billing.Reconcile(c.Context(), identity); err != nil {
		h.Logger.Warnf("Reconciliation failed for %s: %v", identity, err)
		return utils.RespondWithError(c, fiber.StatusBadGateway, "Could not refresh subscription state")
	}

	record, err := h.Ledger.Get(c.Context(), identity)
	if err != nil {
		h.Logger.Errorf("Error reading usage after reconcile for %s: %v", identity, err)
		return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"reconciled": true})
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, record)
}

// landingIdentity resolves the identity on redirect landings, where the
// billing provider sends a plain browser navigation without our API headers.
func landingIdentity(c *fiber.Ctx) string {
	if id := c.Query("user"); id != "" {
		return id
	}
	return c.Get(middleware.IdentityHeader)
}

// BillingSuccess is the checkout success landing: reconcile, then send the
// user home.
func (h *ApplicationHandler) BillingSuccess(c *fiber.Ctx) error {
	identity := landingIdentity(c)
	if identity != "" {
		if err := h.Billing.Reconcile(c.Context(), identity); err != nil {
			// Swallowed: the webhook or the next reconcile will catch up.
			h.Logger.Warnf("Post-checkout reconciliation failed for %s: %v", identity, err)
		}
	} else {
		h.Logger.Warn("Success landing hit without an identity; skipping reconciliation")
	}
	return h.renderLanding(c, "Payment successful!", "Your subscription has been upgraded. Redirecting you to the app...", 3)
}

// BillingCancel is the checkout cancel landing: no reconciliation, no usage
// change, straight back home.
func (h *ApplicationHandler) BillingCancel(c *fiber.Ctx) error {
	return h.renderLanding(c, "Payment cancelled", "No charges were made. You can upgrade anytime.", 3)
}

// BillingRefresh is the "please wait" landing for the case where the
// provider's webhook may lag the redirect: bounded wait, reconcile, then
// home no matter what.
func (h *ApplicationHandler) BillingRefresh(c *fiber.Ctx) error {
	identity := landingIdentity(c)

	time.Sleep(refreshWait)

	if identity != "" {
		if err := h.Billing.Reconcile(c.Context(), identity); err != nil {
			h.Logger.Warnf("Refresh reconciliation failed for %s: %v", identity, err)
		}
	}
	return h.renderLanding(c, "Updating your subscription...", "Taking you back to the app.", 0)
}

func (h *ApplicationHandler) renderLanding(c *fiber.Ctx, heading, message string, delaySeconds int) error {
	home := config.AppBaseURL()
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="%d;url=%s">
<title>%s</title>
</head>
<body>
<h1>%s</h1>
<p>%s</p>
<p><a href="%s">Return to the app</a></p>
</body>
</html>`, delaySeconds, home, heading, heading, message, home)
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(fiber.StatusOK).SendString(page)
}
