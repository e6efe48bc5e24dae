package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mybizz/mybizz/app/models"
	"github.com/mybizz/mybizz/app/repository"
	"github.com/mybizz/mybizz/internal/pkg/billing"
	"github.com/mybizz/mybizz/internal/pkg/hub"
	"github.com/mybizz/mybizz/internal/pkg/metrics"
	"github.com/mybizz/mybizz/internal/pkg/payloadarchive"
)

// SignatureVerifier checks the Paddle-Signature header of a delivery.
type SignatureVerifier interface {
	Verify(ctx context.Context, header string, body []byte) error
}

// RetryTracker is notified when a delivery ends in an actionable status.
type RetryTracker interface {
	Track(ctx context.Context, row *models.WebhookLog)
}

// PaddleWebhookController is the ingestion endpoint for Paddle notifications.
type PaddleWebhookController struct {
	verifier   SignatureVerifier
	logs       repository.WebhookLogRepository
	dispatcher billing.Dispatcher
	forwards   hub.Enqueuer
	archive    payloadarchive.Enqueuer
	retries    RetryTracker
	now        func() time.Time
}

// NewPaddleWebhookController creates the endpoint. archive and retries may be nil.
func NewPaddleWebhookController(
	verifier SignatureVerifier,
	logs repository.WebhookLogRepository,
	dispatcher billing.Dispatcher,
	forwards hub.Enqueuer,
	archive payloadarchive.Enqueuer,
	retries RetryTracker,
) *PaddleWebhookController {
	return &PaddleWebhookController{
		verifier:   verifier,
		logs:       logs,
		dispatcher: dispatcher,
		forwards:   forwards,
		archive:    archive,
		retries:    retries,
		now:        time.Now,
	}
}

// HandleWebhook verifies, records, processes and forwards one delivery.
// Once the log row exists the response is always 200.
func (pc *PaddleWebhookController) HandleWebhook(c *fiber.Ctx) error {
	ctx := c.UserContext()
	// fasthttp reuses the request buffer after the handler returns
	body := append([]byte(nil), c.Body()...)

	if err := pc.verifier.Verify(ctx, c.Get(billing.SignatureHeader), body); err != nil {
		var sigErr *billing.SignatureError
		if errors.As(err, &sigErr) {
			metrics.SignatureFailures.WithLabelValues(sigErr.Reason).Inc()
			return c.Status(sigErr.Status).JSON(fiber.Map{"error": sigErr.Reason})
		}
		log.Errorf("[Webhook] Signature verification failed unexpectedly: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if !utf8.Valid(body) {
		log.Warnf("[Webhook] Body is not valid UTF-8 (%d bytes)", len(body))
		pc.recordRejected(ctx, models.WebhookEventIDDecodeError, "Body could not be decoded as UTF-8")
		metrics.WebhooksReceived.WithLabelValues("", "decode_error").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_encoding"})
	}

	evt, err := billing.ParseEvent(body)
	if err != nil {
		var envErr *billing.EnvelopeError
		if errors.As(err, &envErr) {
			log.Warnf("[Webhook] Rejected delivery: %v", err)
			pc.recordRejected(ctx, models.WebhookEventIDMissingField, err.Error())
			metrics.WebhooksReceived.WithLabelValues("", "missing_field").Inc()
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_field", "missing": envErr.Missing})
		}
		log.Warnf("[Webhook] Body is not valid JSON: %v", err)
		pc.recordRejected(ctx, models.WebhookEventIDJSONError, "Invalid JSON: "+err.Error())
		metrics.WebhooksReceived.WithLabelValues("", "json_error").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_json"})
	}

	row := models.NewWebhookLog(evt.EventID, evt.EventType, evt.ResourceID(), pc.now())
	if err := pc.logs.Create(ctx, row); err != nil {
		log.Errorf("[Webhook] CRITICAL could not create log row for event %s: %v", evt.EventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	log.Infof("[Webhook] Received %s (event %s, log %d)", evt.EventType, evt.EventID, row.ID)

	if pc.archive != nil {
		job := payloadarchive.Job{LogID: row.ID, EventID: evt.EventID, ReceivedAt: row.ReceivedAt, Payload: body}
		if err := pc.archive.EnqueueArchive(ctx, job); err != nil {
			log.Warnf("[Webhook] Could not enqueue archive of event %s (log %d): %v", evt.EventID, row.ID, err)
		}
	}

	status, detail := pc.process(ctx, evt)
	metrics.WebhooksReceived.WithLabelValues(evt.EventType, outcomeLabel(status)).Inc()

	updated := pc.recordOutcome(ctx, row.ID, status, detail)
	pc.forward(ctx, row.ID, evt.EventID, body)

	if updated != nil && pc.retries != nil {
		pc.retries.Track(ctx, updated)
	}

	return c.JSON(fiber.Map{"status": "received", "log_id": row.ID})
}

// process runs the resource processor. Errors and panics become a
// processing error on the row.
func (pc *PaddleWebhookController) process(ctx context.Context, evt *billing.Event) (status models.WebhookLogStatus, detail string) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Webhook] CRITICAL panic processing event %s: %v", evt.EventID, r)
			status = models.WebhookStatusProcessingError
			detail = fmt.Sprintf("Unexpected error: %v", r)
		}
	}()

	res, err := pc.dispatcher.Dispatch(ctx, evt.EventType, evt.Data)
	if err != nil {
		log.Errorf("[Webhook] CRITICAL processing event %s failed: %v", evt.EventID, err)
		return models.WebhookStatusProcessingError, "Unexpected error: " + err.Error()
	}
	if res.OK {
		return models.WebhookStatusProcessed, res.Detail
	}
	if res.MissingLink {
		return models.WebhookStatusProcessingError, "Missing link: " + res.Detail
	}
	return models.WebhookStatusProcessingError, res.Detail
}

func (pc *PaddleWebhookController) recordOutcome(ctx context.Context, logID uint, status models.WebhookLogStatus, detail string) *models.WebhookLog {
	row, err := pc.logs.Update(ctx, logID, func(l *models.WebhookLog) error {
		return l.TransitionTo(status, detail)
	})
	if err != nil {
		log.Errorf("[Webhook] CRITICAL could not record processing outcome on log %d: %v", logID, err)
		return nil
	}
	return row
}

// forward marks the row and hands the raw body to the background forward
// task. A processing error keeps its status; the trail notes the forward
// either way. The row is marked before enqueueing so the task never
// observes the pre-forward status.
func (pc *PaddleWebhookController) forward(ctx context.Context, logID uint, eventID string, body []byte) {
	stamp := pc.now().UTC().Format(time.RFC3339)
	_, err := pc.logs.Update(ctx, logID, func(l *models.WebhookLog) error {
		entry := fmt.Sprintf("[%s] Forwarding initiated", stamp)
		if l.Status == models.WebhookStatusProcessed {
			return l.TransitionTo(models.WebhookStatusForwardingInitiated, entry)
		}
		l.AppendDetail(entry)
		return nil
	})
	if err != nil {
		log.Errorf("[Webhook] CRITICAL could not record forward on log %d: %v", logID, err)
	}

	enqueueErr := pc.forwards.EnqueueForward(ctx, hub.ForwardJob{LogID: logID, EventID: eventID, Payload: body})
	if enqueueErr == nil {
		return
	}
	log.Errorf("[Webhook] Could not enqueue forward of event %s (log %d): %v", eventID, logID, enqueueErr)
	_, err = pc.logs.Update(ctx, logID, func(l *models.WebhookLog) error {
		entry := fmt.Sprintf("[%s] Forwarding task could not be scheduled: %v", stamp, enqueueErr)
		if l.Status == models.WebhookStatusForwardingInitiated {
			return l.TransitionTo(models.WebhookStatusForwardingTaskError, entry)
		}
		l.AppendDetail(entry)
		return nil
	})
	if err != nil {
		log.Errorf("[Webhook] CRITICAL could not record forward failure on log %d: %v", logID, err)
	}
}

// recordRejected stores a best-effort row for a delivery whose event id is
// unknown. The row stays Received.
func (pc *PaddleWebhookController) recordRejected(ctx context.Context, sentinel, detail string) {
	row := models.NewWebhookLog(sentinel, "", "", pc.now())
	row.AppendDetail(detail)
	if err := pc.logs.Create(ctx, row); err != nil {
		log.Errorf("[Webhook] Could not record rejected delivery (%s): %v", sentinel, err)
	}
}

func outcomeLabel(s models.WebhookLogStatus) string {
	if s == models.WebhookStatusProcessed {
		return "processed"
	}
	return "processing_error"
}
