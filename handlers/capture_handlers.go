package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"audiototext/api-gateway/internal/capture"
	"audiototext/api-gateway/internal/ledger"
	"audiototext/api-gateway/middleware"
	"audiototext/api-gateway/utils"
)

// StartCapture acquires the microphone and begins recording. A denied or
// absent device is reported as a distinct, recoverable condition; the
// session stays idle.
func (h *ApplicationHandler) StartCapture(c *fiber.Ctx) error {
	identity := middleware.Identity(c)

	// Surfacing exhaustion before recording saves the user from capturing
	// audio they cannot process. The authoritative gate still runs at stop.
	if _, err := h.Ledger.CheckAndReserve(c.Context(), identity); errors.Is(err, ledger.ErrQuotaExhausted) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"status":  "error",
			"message": "Usage limit reached. Upgrade your plan to continue.",
			"data":    fiber.Map{"upgrade_required": true},
		})
	}

	if err := h.Capture.Start(c.Context()); err != nil {
		if errors.Is(err, capture.ErrDeviceUnavailable) {
			h.Logger.Warnf("Capture start failed for %s: %v", identity, err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":  "error",
				"message": "Could not access microphone. Please check permissions.",
			})
		}
		if errors.Is(err, capture.ErrAlreadyRecording) {
			return utils.RespondWithError(c, fiber.StatusConflict, "A recording is already in progress")
		}
		h.Logger.Errorf("Capture start failed for %s: %v", identity, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not start recording")
	}

	h.Logger.Infof("Recording started for %s", identity)
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"state": h.Capture.State(),
	})
}

// StopCapture finalizes the recording and feeds the artifact straight into
// the processing pipeline.
func (h *ApplicationHandler) StopCapture(c *fiber.Ctx) error {
	identity := middleware.Identity(c)

	if h.Capture.State() != capture.StateRecording {
		return utils.RespondWithError(c, fiber.StatusConflict, "No recording in progress")
	}

	// The gate runs before Stop finalizes anything. A denied stop leaves
	// the recording running, so the captured audio survives the upgrade
	// round-trip and the user can stop again instead of re-recording.
	usage, err := h.Ledger.CheckAndReserve(c.Context(), identity)
	if err != nil {
		if errors.Is(err, ledger.ErrQuotaExhausted) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"status":  "error",
				"message": "Usage limit reached. Upgrade your plan to keep this recording.",
				"data":    fiber.Map{"upgrade_required": true, "state": h.Capture.State()},
			})
		}
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not verify usage allotment")
	}

	artifact, err := h.Capture.Stop()
	if err != nil {
		h.Logger.Errorf("Capture stop failed for %s: %v", identity, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not finalize recording")
	}
	if artifact == nil {
		// A concurrent Stop or Close won the teardown between the state
		// check and here.
		return utils.RespondWithError(c, fiber.StatusConflict, "No recording in progress")
	}
	h.Logger.Infof("Recording stopped for %s: %s (%d bytes)", identity, artifact.Filename, len(artifact.Data))

	result, err := h.Pipeline.ProcessArtifact(c.Context(), artifact.Data, artifact.Filename, usage.Plan)
	if err != nil {
		return h.respondProcessingError(c, identity, err)
	}
	return h.finishProcessing(c, identity, result)
}

// CaptureStatus reports the live session state for visualization: lifecycle
// state, elapsed seconds and the normalized audio level.
func (h *ApplicationHandler) CaptureStatus(c *fiber.Ctx) error {
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"state":           h.Capture.State(),
		"elapsed_seconds": h.Capture.Elapsed(),
		"level":           h.Capture.Level(),
	})
}

// AbortCapture tears the session down without emitting an artifact, the
// navigate-away path. Safe to call in any state.
func (h *ApplicationHandler) AbortCapture(c *fiber.Ctx) error {
	identity := middleware.Identity(c)
	if err := h.Capture.Close(); err != nil {
		h.Logger.Errorf("Capture teardown failed for %s: %v", identity, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not release recording resources")
	}
	h.Logger.Infof("Capture session released for %s", identity)
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{
		"state": h.Capture.State(),
	})
}
