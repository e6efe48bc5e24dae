package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mybizz/mybizz/internal/pkg/jobqueue"
)

// QueueStats is the read side of the background job queue.
type QueueStats interface {
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
}

// ScheduleSize reports how many rows wait in the retry schedule.
type ScheduleSize interface {
	Size(ctx context.Context) (int64, error)
}

// AdminQueueController exposes forward/archive queue and retry schedule state.
type AdminQueueController struct {
	queue    QueueStats
	schedule ScheduleSize
}

func NewAdminQueueController(queue QueueStats, schedule ScheduleSize) *AdminQueueController {
	return &AdminQueueController{queue: queue, schedule: schedule}
}

// HandleQueueStats returns the job counters and the pending sizes.
func (aqc *AdminQueueController) HandleQueueStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	stats, err := aqc.queue.GetJobStats(ctx)
	if err != nil {
		return aqc.handleError(c, "job stats", err)
	}
	pending, err := aqc.queue.GetQueueSize(ctx)
	if err != nil {
		return aqc.handleError(c, "queue size", err)
	}
	processing, err := aqc.queue.GetProcessingSize(ctx)
	if err != nil {
		return aqc.handleError(c, "processing size", err)
	}

	out := fiber.Map{
		"jobs":       stats,
		"pending":    pending,
		"processing": processing,
	}
	if aqc.schedule != nil {
		scheduled, err := aqc.schedule.Size(ctx)
		if err != nil {
			return aqc.handleError(c, "retry schedule size", err)
		}
		out["retry_scheduled"] = scheduled
	}
	return c.JSON(out)
}

func (aqc *AdminQueueController) handleError(c *fiber.Ctx, what string, err error) error {
	log.Errorf("[AdminQueue] Reading %s failed: %v", what, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "internal_server_error",
		"message": "Failed to read " + what,
	})
}
