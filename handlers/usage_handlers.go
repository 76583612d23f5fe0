package handlers

import (
	"github.com/gofiber/fiber/v2"

	"audiototext/api-gateway/internal/billing"
	"audiototext/api-gateway/middleware"
	"audiototext/api-gateway/utils"
)

// GetUsage returns the caller's usage record, creating it with free-tier
// defaults on first access.
func (h *ApplicationHandler) GetUsage(c *fiber.Ctx) error {
	identity := middleware.Identity(c)

	record, err := h.Ledger.Get(c.Context(), identity)
	if err != nil {
		h.Logger.Errorf("Error fetching usage for %s: %v", identity, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not retrieve usage")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, record)
}

// GetPlans returns the plan catalog together with the caller's current usage
// snapshot, everything the plan dialog needs. The billing provider (behind
// its short-lived cache) is authoritative for plan and allotment; the ledger
// copy serves when the provider is unreachable.
func (h *ApplicationHandler) GetPlans(c *fiber.Ctx) error {
	identity := middleware.Identity(c)

	record, err := h.Ledger.Get(c.Context(), identity)
	if err != nil {
		h.Logger.Errorf("Error fetching usage for %s: %v", identity, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not retrieve plan information")
	}

	if plan, maxUsage, err := h.Billing.CurrentPlan(c.Context(), identity); err == nil {
		record.Plan = plan
		record.MaxUsage = maxUsage
	} else {
		h.Logger.Warnf("Plan lookup for %s fell back to the ledger: %v", identity, err)
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"plans": billing.Catalog(),
		"usage": record,
	})
}
