package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-support/internal/ingest"
	"github.com/spec-kit/marketplace-support/internal/queue"
	apperrors "github.com/spec-kit/marketplace-support/pkg/util"
)

// IngestHandler triggers out-of-schedule ingestion runs.
type IngestHandler struct {
	queue queue.Queue
}

// NewIngestHandler constructs handler.
func NewIngestHandler(q queue.Queue) *IngestHandler {
	return &IngestHandler{queue: q}
}

// Trigger POST /profiles/:id/ingest. The optional full query flag requests a
// full-history pass instead of the incremental window.
func (h *IngestHandler) Trigger(c *fiber.Ctx) error {
	profileID := strings.TrimSpace(c.Params("id"))
	if profileID == "" {
		return apperrors.NewValidationError("profile id required", nil)
	}
	fullHistory := c.QueryBool("full", false)

	job, err := queue.NewJob(ingest.JobTypeIngestProfile, ingest.IngestProfilePayload{
		ProfileID:   profileID,
		FullHistory: fullHistory,
	})
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := h.queue.Enqueue(c.Context(), job, 0, queue.TransportDefault); err != nil {
		return apperrors.NewInternalError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{
		"profile_id":   profileID,
		"full_history": fullHistory,
		"status":       "queued",
	}})
}
