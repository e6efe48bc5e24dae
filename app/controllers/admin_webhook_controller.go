package controllers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/mybizz/mybizz/app/models"
	"github.com/mybizz/mybizz/internal/pkg/hub"
	"github.com/mybizz/mybizz/internal/pkg/retry"
	"github.com/mybizz/mybizz/internal/pkg/usercontext"
)

// RetryService is the admin-facing side of the retry coordinator.
type RetryService interface {
	ListActionable(ctx context.Context, statusFilter string) ([]models.WebhookLog, error)
	TriggerManual(ctx context.Context, logID uint) (*retry.Outcome, error)
	MarkResolved(ctx context.Context, logID uint, by string) (*models.WebhookLog, error)
	FetchPayload(ctx context.Context, eventID string) ([]byte, error)
	ScheduledSweep(ctx context.Context) (int, error)
}

// AdminWebhookController serves the retry UI RPCs.
type AdminWebhookController struct {
	retries RetryService
}

func NewAdminWebhookController(retries RetryService) *AdminWebhookController {
	return &AdminWebhookController{retries: retries}
}

// HandleListWebhookLogs returns actionable rows, optionally filtered by ?status=.
func (ac *AdminWebhookController) HandleListWebhookLogs(c *fiber.Ctx) error {
	filter := c.Query("status")
	if filter != "" {
		if _, err := models.ParseWebhookLogStatus(filter); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
		}
	}

	rows, err := ac.retries.ListActionable(c.UserContext(), filter)
	if err != nil {
		log.Errorf("[AdminWebhook] Listing webhook logs failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load webhook logs"})
	}
	return c.JSON(fiber.Map{"logs": rows, "count": len(rows)})
}

// HandleReprocess triggers a manual reprocess of one row.
func (ac *AdminWebhookController) HandleReprocess(c *fiber.Ctx) error {
	id, err := parseLogID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid log id"})
	}

	out, err := ac.retries.TriggerManual(c.UserContext(), id)
	if err != nil {
		return ac.handleError(c, "reprocess", id, err)
	}
	log.Infof("[AdminWebhook] %s reprocessed log %d: %s", usercontext.GetUsername(c), id, out.Status)
	return c.JSON(out)
}

// HandleResolve marks one row as resolved by the calling admin.
func (ac *AdminWebhookController) HandleResolve(c *fiber.Ctx) error {
	id, err := parseLogID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid log id"})
	}

	by := usercontext.GetUsername(c)
	if by == "" {
		by = "admin #" + strconv.FormatUint(uint64(usercontext.GetUserID(c)), 10)
	}
	row, err := ac.retries.MarkResolved(c.UserContext(), id, by)
	if err != nil {
		return ac.handleError(c, "resolve", id, err)
	}
	return c.JSON(row)
}

// HandleHubPayload returns the raw payload the hub holds for an event.
func (ac *AdminWebhookController) HandleHubPayload(c *fiber.Ctx) error {
	eventID := c.Params("event_id")
	raw, err := ac.retries.FetchPayload(c.UserContext(), eventID)
	if err != nil {
		var statusErr *hub.StatusError
		switch {
		case errors.Is(err, hub.ErrNotConfigured):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "not_configured", "message": err.Error()})
		case errors.As(err, &statusErr) && statusErr.StatusCode == fiber.StatusNotFound:
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Hub has no payload for this event"})
		default:
			log.Warnf("[AdminWebhook] Hub payload fetch for %s failed: %v", eventID, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "hub_error", "message": err.Error()})
		}
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}

// HandleSweep runs one scheduled sweep immediately.
func (ac *AdminWebhookController) HandleSweep(c *fiber.Ctx) error {
	n, err := ac.retries.ScheduledSweep(c.UserContext())
	if err != nil {
		log.Errorf("[AdminWebhook] Manual sweep failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": err.Error()})
	}
	return c.JSON(fiber.Map{"processed": n})
}

func (ac *AdminWebhookController) handleError(c *fiber.Ctx, action string, id uint, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Webhook log not found"})
	case errors.Is(err, retry.ErrNotActionable), errors.Is(err, models.ErrIllegalTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": err.Error()})
	}
	log.Errorf("[AdminWebhook] %s of log %d failed: %v", action, id, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to " + action + " webhook log"})
}

func parseLogID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
