package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Yashaswini-V21/HuddleUp/internal/queue"
	"github.com/Yashaswini-V21/HuddleUp/utils"
)

// GetJobStatus exposes the queue-side view of a job for operators.
// Successful jobs are discarded on completion, so a 404 after success
// is normal; the video record is the durable trace.
func (h *ApplicationHandler) GetJobStatus(c *fiber.Ctx) error {
	state, err := h.Queue.State(c.Context(), c.Params("id"))
	if errors.Is(err, queue.ErrJobNotFound) {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Job not found")
	}
	if err != nil {
		h.Logger.WithError(err).Error("Failed to fetch job state")
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Error fetching job state")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, state)
}
