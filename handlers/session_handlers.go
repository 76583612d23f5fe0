package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"audiototext/api-gateway/internal/history"
	"audiototext/api-gateway/middleware"
)

// ListSessions godoc
// @Summary List transcription sessions
// @Description Retrieves the caller's past transcription sessions, newest first.
// @Tags sessions
// @Produce  json
// @Success 200 {object} map[string]interface{} "Session list"
// @Router /sessions [get]
func (h *ApplicationHandler) ListSessions(c *fiber.Ctx) error {
	identity := middleware.Identity(c)

	sessions, err := h.History.List(c.Context(), identity)
	if err != nil {
		h.Logger.Errorf("Error listing sessions for %s: %v", identity, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": fmt.Sprintf("Could not retrieve sessions: %v", err),
		})
	}

	h.Logger.Infof("Fetched %d sessions for %s", len(sessions), identity)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"data":   sessions,
	})
}

// GetSession handles retrieving a specific session by its ID.
func (h *ApplicationHandler) GetSession(c *fiber.Ctx) error {
	identity := middleware.Identity(c)
	sessionID := c.Params("id")

	session, err := h.History.GetByID(c.Context(), identity, sessionID)
	if err != nil {
		if errors.Is(err, history.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": fmt.Sprintf("Session with ID %s not found", sessionID),
			})
		}
		h.Logger.Errorf("Error fetching session %s for %s: %v", sessionID, identity, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": fmt.Sprintf("Could not retrieve session %s: %v", sessionID, err),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"data":   session,
	})
}

// ToggleActionItem flips the completed flag on one action item of a session.
// Completion state is the only user-editable field after creation.
func (h *ApplicationHandler) ToggleActionItem(c *fiber.Ctx) error {
	identity := middleware.Identity(c)
	sessionID := c.Params("id")
	itemID := c.Params("itemId")

	session, err := h.History.ToggleActionItem(c.Context(), identity, sessionID, itemID)
	if err != nil {
		if errors.Is(err, history.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": fmt.Sprintf("Session with ID %s not found", sessionID),
			})
		}
		if errors.Is(err, history.ErrActionItemNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": fmt.Sprintf("Action item %s not found in session %s", itemID, sessionID),
			})
		}
		h.Logger.Errorf("Error toggling item %s in session %s: %v", itemID, sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Could not update action item",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"data":   session,
	})
}
