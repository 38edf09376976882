package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/LichessStats/internal/pkg/jobqueue"
)

// QueueStatsSource reports the state of the sync job queue.
type QueueStatsSource interface {
	Stats(ctx context.Context) (*jobqueue.Stats, error)
}

// QueueController serves the queue snapshot on the operator surface next to /metrics.
type QueueController struct {
	source QueueStatsSource
}

func NewQueueController(source QueueStatsSource) *QueueController {
	return &QueueController{source: source}
}

// HandleQueueStats returns queue sizes, worker state and job status counters
func (q *QueueController) HandleQueueStats(c *fiber.Ctx) error {
	stats, err := q.source.Stats(c.Context())
	if err != nil {
		log.Errorf("[JobQueue] Could not read queue stats: %v", err)
		return errorResponse(c, fiber.StatusServiceUnavailable, "queue_unavailable", "Failed to read queue statistics")
	}
	return c.JSON(stats)
}
