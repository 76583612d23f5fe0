package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"audiototext/api-gateway/internal/aiclient"
	"audiototext/api-gateway/internal/ledger"
	"audiototext/api-gateway/middleware"
	"audiototext/api-gateway/models"
)

var validate = validator.New()

// ProcessTranscriptionRequest is the artifact transport boundary: the audio
// payload must arrive base64-encoded, never as raw bytes.
type ProcessTranscriptionRequest struct {
	Audio    string `json:"audio" validate:"required"`
	Filename string `json:"filename,omitempty"`
}

// ProcessTranscription godoc
// @Summary Process an audio artifact
// @Description Gates the request on the caller's usage allotment, transcribes and summarizes the audio, persists the session and records one unit of usage.
// @Tags transcriptions
// @Accept  json
// @Produce  json
// @Param   payload body ProcessTranscriptionRequest true "Base64-encoded audio"
// @Success 201 {object} map[string]interface{} "Processing result with persisted session"
// @Failure 402 {object} map[string]interface{} "Usage quota exhausted"
// @Failure 502 {object} map[string]interface{} "Upstream processing failed"
// @Router /transcriptions/process [post]
func (h *ApplicationHandler) ProcessTranscription(c *fiber.Ctx) error {
	identity := middleware.Identity(c)

	payload := new(ProcessTranscriptionRequest)
	if err := c.BodyParser(payload); err != nil {
		h.Logger.Errorf("Error parsing process payload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": fmt.Sprintf("Invalid request body: %v", err),
		})
	}
	if err := validate.Struct(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": fmt.Sprintf("Validation failed: %v", err),
		})
	}

	filename := payload.Filename
	if filename == "" {
		filename = "upload.webm"
	}

	// Quota gate runs before anything touches the upstream provider. The
	// returned snapshot pins the plan tier this request was admitted with;
	// a reconcile landing mid-flight does not change it.
	usage, err := h.Ledger.CheckAndReserve(c.Context(), identity)
	if err != nil {
		if errors.Is(err, ledger.ErrQuotaExhausted) {
			h.Logger.Infof("Processing denied for %s: quota exhausted", identity)
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"status":  "error",
				"message": "Usage limit reached. Upgrade your plan to continue.",
				"data":    fiber.Map{"upgrade_required": true},
			})
		}
		h.Logger.Errorf("Usage check failed for %s: %v", identity, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Could not verify usage allotment",
		})
	}

	result, err := h.Pipeline.ProcessEncoded(c.Context(), payload.Audio, filename, usage.Plan)
	if err != nil {
		return h.respondProcessingError(c, identity, err)
	}

	return h.finishProcessing(c, identity, result)
}

// finishProcessing persists the result and records usage. A history entry is
// written only after a fully successful processing call, and usage only
// after a successful persist; any failure leaves both untouched.
func (h *ApplicationHandler) finishProcessing(c *fiber.Ctx, identity string, result *models.ProcessingResult) error {
	session, err := h.History.Save(c.Context(), identity, result)
	if err != nil {
		h.Logger.Errorf("Error saving session for %s: %v", identity, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Processing succeeded but the session could not be saved",
		})
	}

	if err := h.Ledger.RecordUsage(c.Context(), identity); err != nil {
		// The user already has their result; an undercounted unit is
		// preferable to failing the request here.
		h.Logger.Errorf("Error recording usage for %s: %v", identity, err)
	}

	h.Logger.Infof("Processing complete for %s: session %s", identity, session.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"data": fiber.Map{
			"session": session,
			"result":  result,
		},
	})
}

func (h *ApplicationHandler) respondProcessingError(c *fiber.Ctx, identity string, err error) error {
	if errors.Is(err, aiclient.ErrUpstreamUnavailable) || errors.Is(err, aiclient.ErrUpstreamRejected) {
		h.Logger.Errorf("Upstream processing failed for %s: %v", identity, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"status":  "error",
			"message": "Audio processing failed. Please try again.",
		})
	}
	h.Logger.Errorf("Invalid audio payload from %s: %v", identity, err)
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"status":  "error",
		"message": fmt.Sprintf("Could not process audio: %v", err),
	})
}
