package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/LichessStats/internal/pkg/jobqueue"
	"github.com/ManuelReschke/LichessStats/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/LichessStats/internal/pkg/usercontext"
)

// SyncRequest is the optional body of POST /api/sync.
type SyncRequest struct {
	Force bool `json:"force"`
}

// SyncStats holds the caller's own sync totals.
type SyncStats struct {
	Account *counter.Totals `json:"account"`
}

type SyncController struct {
	trigger SyncTrigger
}

func NewSyncController(trigger SyncTrigger) *SyncController {
	return &SyncController{trigger: trigger}
}

// HandleSync queues a sync of the caller's games; force re-imports the full history
func (s *SyncController) HandleSync(c *fiber.Ctx) error {
	var req SyncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "invalid_body", "Body must be JSON like {\"force\": true}")
		}
	}

	userID := usercontext.GetUserID(c)
	var (
		job *jobqueue.Job
		err error
	)
	if req.Force {
		job, err = s.trigger.RunFullBackfill(c.Context(), userID)
	} else {
		job, err = s.trigger.RefreshAccount(c.Context(), userID)
	}
	if err != nil {
		log.Errorf("[Sync] Could not queue sync for user %d: %v", userID, err)
		return errorResponse(c, fiber.StatusServiceUnavailable, "queue_unavailable", "Failed to queue sync")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": job.ID,
		"type":   job.Type,
		"status": job.Status,
	})
}

// HandleStats returns the caller's accumulated sync totals
func (s *SyncController) HandleStats(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	totals, err := s.trigger.AccountTotals(c.Context(), userID)
	if err != nil {
		log.Errorf("[Sync] Could not read sync totals of user %d: %v", userID, err)
		return errorResponse(c, fiber.StatusServiceUnavailable, "queue_unavailable", "Failed to read sync statistics")
	}
	return c.JSON(SyncStats{Account: totals})
}
