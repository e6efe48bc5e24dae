// Package retry drives manual and scheduled reprocessing of webhook log rows
// that ended in a failure or deferred state.
package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/mybizz/mybizz/app/models"
	"github.com/mybizz/mybizz/app/repository"
	"github.com/mybizz/mybizz/internal/pkg/billing"
	"github.com/mybizz/mybizz/internal/pkg/hub"
	"github.com/mybizz/mybizz/internal/pkg/metrics"
)

const (
	DefaultMaxRetries = 5
	DefaultBatchSize  = 50
	listLimit         = 500

	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// ErrNotActionable is returned when a row is not in a state that can be
// reprocessed.
var ErrNotActionable = errors.New("webhook log is not eligible for reprocessing")

// PayloadFetcher retrieves a previously forwarded raw payload from the hub.
type PayloadFetcher interface {
	Retrieve(ctx context.Context, eventID string) ([]byte, error)
}

// ArchiveLoader reads a raw payload back from the archive.
type ArchiveLoader interface {
	Load(ctx context.Context, key string) ([]byte, error)
}

// Options holds the optional collaborators and limits of a Coordinator.
type Options struct {
	MaxRetries int
	BatchSize  int
	// Archive is the payload source of last resort for scheduled retries.
	Archive ArchiveLoader
	// Forwards re-enqueues a hub forward after a successful reprocess of a
	// row that never reached the hub.
	Forwards hub.Enqueuer
}

// Outcome is the result of one reprocess attempt.
type Outcome struct {
	LogID      uint                    `json:"log_id"`
	EventID    string                  `json:"event_id"`
	Status     models.WebhookLogStatus `json:"status"`
	RetryCount int                     `json:"retry_count"`
	Detail     string                  `json:"detail"`
}

// Coordinator re-runs failed webhooks through the resource processors.
type Coordinator struct {
	logs       repository.WebhookLogRepository
	dispatcher billing.Dispatcher
	payloads   PayloadFetcher
	schedule   Schedule
	archive    ArchiveLoader
	forwards   hub.Enqueuer
	maxRetries int
	batchSize  int
	now        func() time.Time

	// sweepMu keeps the ticker and the admin endpoint from attempting the
	// same due row twice.
	sweepMu sync.Mutex
}

// NewCoordinator creates a coordinator. A nil schedule makes the sweep scan
// the log table directly.
func NewCoordinator(logs repository.WebhookLogRepository, dispatcher billing.Dispatcher, payloads PayloadFetcher, schedule Schedule, opts Options) *Coordinator {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Coordinator{
		logs:       logs,
		dispatcher: dispatcher,
		payloads:   payloads,
		schedule:   schedule,
		archive:    opts.Archive,
		forwards:   opts.Forwards,
		maxRetries: opts.MaxRetries,
		batchSize:  opts.BatchSize,
		now:        time.Now,
	}
}

// MaxRetries returns the retry ceiling.
func (c *Coordinator) MaxRetries() int {
	return c.maxRetries
}

// ListActionable returns the rows shown in the retry UI, newest first: every
// actionable row, or only rows in statusFilter when it is set.
func (c *Coordinator) ListActionable(ctx context.Context, statusFilter string) ([]models.WebhookLog, error) {
	statuses := models.ActionableWebhookStatuses
	if statusFilter != "" {
		s, err := models.ParseWebhookLogStatus(statusFilter)
		if err != nil {
			return nil, err
		}
		statuses = []models.WebhookLogStatus{s}
	}
	return c.logs.ListByStatuses(ctx, statuses, listLimit)
}

// FetchPayload returns the raw payload the hub holds for eventID.
func (c *Coordinator) FetchPayload(ctx context.Context, eventID string) ([]byte, error) {
	return c.payloads.Retrieve(ctx, eventID)
}

// ReprocessOne re-parses raw, dispatches it to the matching processor and
// records the attempt on the row. It does not count against the retry
// ceiling.
func (c *Coordinator) ReprocessOne(ctx context.Context, row *models.WebhookLog, raw []byte) (*Outcome, error) {
	return c.reprocess(ctx, row, raw, TriggerManual, false)
}

// TriggerManual reprocesses one row with a payload fetched from the hub. A
// failed fetch is recorded without attempting reprocessing. retry_count is
// left unchanged.
func (c *Coordinator) TriggerManual(ctx context.Context, logID uint) (*Outcome, error) {
	row, err := c.logs.GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}
	if !reprocessable(row.Status) {
		return nil, fmt.Errorf("%w: status %q", ErrNotActionable, row.Status)
	}

	return c.guard(ctx, row.ID, TriggerManual, func() (*Outcome, error) {
		raw, err := c.payloads.Retrieve(ctx, row.EventID)
		if err != nil {
			log.Warnf("[RetryCoordinator] Hub fetch for event %s (log %d) failed: %v", row.EventID, row.ID, err)
			return c.finish(ctx, row.ID, row.EventID, nil,
				models.WebhookStatusReprocessHubFetch, "Hub payload fetch failed: "+err.Error(), TriggerManual, false)
		}
		return c.reprocess(ctx, row, raw, TriggerManual, false)
	})
}

// MarkResolved closes a row by manual override and drops it from the
// schedule.
func (c *Coordinator) MarkResolved(ctx context.Context, logID uint, by string) (*models.WebhookLog, error) {
	at := c.now()
	row, err := c.logs.Update(ctx, logID, func(l *models.WebhookLog) error {
		return l.MarkResolved(by, at)
	})
	if err != nil {
		return nil, err
	}
	c.unschedule(ctx, logID)
	log.Infof("[RetryCoordinator] Log %d resolved by %s", logID, by)
	return row, nil
}

// ScheduledSweep processes the rows whose next retry time has passed and
// returns how many attempts it made.
func (c *Coordinator) ScheduledSweep(ctx context.Context) (int, error) {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	ids, err := c.dueIDs(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if c.sweepOne(ctx, id) {
			processed++
		}
	}
	return processed, nil
}

// Reseed schedules every actionable row under the ceiling. Scores are a
// function of the row, so running it repeatedly is harmless.
func (c *Coordinator) Reseed(ctx context.Context) (int, error) {
	if c.schedule == nil {
		return 0, nil
	}
	rows, err := c.logs.ListRetryCandidates(ctx, models.ActionableWebhookStatuses, c.maxRetries, 0)
	if err != nil {
		return 0, fmt.Errorf("list retry candidates: %w", err)
	}
	n := 0
	for i := range rows {
		if err := c.schedule.Schedule(ctx, rows[i].ID, NextAttemptAt(&rows[i])); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Track schedules a row that has just entered an actionable status.
func (c *Coordinator) Track(ctx context.Context, row *models.WebhookLog) {
	if row.Status.IsActionable() && row.RetryCount < c.maxRetries {
		c.scheduleRow(ctx, row)
	}
}

func (c *Coordinator) dueIDs(ctx context.Context) ([]uint, error) {
	now := c.now()
	if c.schedule != nil {
		ids, err := c.schedule.Due(ctx, now, c.batchSize)
		if err == nil {
			return ids, nil
		}
		log.Warnf("[RetryCoordinator] Retry schedule unavailable, scanning log table: %v", err)
	}

	rows, err := c.logs.ListRetryCandidates(ctx, models.ActionableWebhookStatuses, c.maxRetries, 0)
	if err != nil {
		return nil, fmt.Errorf("list retry candidates: %w", err)
	}
	ids := make([]uint, 0, len(rows))
	for i := range rows {
		if len(ids) == c.batchSize {
			break
		}
		if !NextAttemptAt(&rows[i]).After(now) {
			ids = append(ids, rows[i].ID)
		}
	}
	return ids, nil
}

// sweepOne re-checks a due row against the database and attempts it.
func (c *Coordinator) sweepOne(ctx context.Context, id uint) bool {
	row, err := c.logs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.unschedule(ctx, id)
		} else {
			log.Errorf("[RetryCoordinator] Could not load log %d: %v", id, err)
		}
		return false
	}
	if !row.Status.IsActionable() || row.RetryCount >= c.maxRetries {
		c.unschedule(ctx, id)
		return false
	}
	if NextAttemptAt(row).After(c.now()) {
		c.scheduleRow(ctx, row)
		return false
	}

	_, err = c.guard(ctx, row.ID, TriggerScheduled, func() (*Outcome, error) {
		raw, source, err := c.loadPayload(ctx, row)
		if err != nil {
			return c.finish(ctx, row.ID, row.EventID, nil,
				models.WebhookStatusReprocessHubFetch, "Hub payload fetch failed: "+err.Error(), TriggerScheduled, true)
		}
		if source != "" {
			log.Infof("[RetryCoordinator] Using %s payload for event %s (log %d)", source, row.EventID, row.ID)
		}
		return c.reprocess(ctx, row, raw, TriggerScheduled, true)
	})
	if err != nil {
		log.Errorf("[RetryCoordinator] Scheduled retry of log %d failed: %v", id, err)
	}
	return true
}

// loadPayload fetches from the hub, then falls back to the archive.
func (c *Coordinator) loadPayload(ctx context.Context, row *models.WebhookLog) ([]byte, string, error) {
	raw, hubErr := c.payloads.Retrieve(ctx, row.EventID)
	if hubErr == nil {
		return raw, "", nil
	}
	if c.archive == nil || row.ArchivedKey == "" {
		return nil, "", hubErr
	}
	raw, err := c.archive.Load(ctx, row.ArchivedKey)
	if err != nil {
		log.Warnf("[RetryCoordinator] Archive fallback for log %d failed: %v", row.ID, err)
		return nil, "", hubErr
	}
	return raw, "archived", nil
}

func (c *Coordinator) reprocess(ctx context.Context, row *models.WebhookLog, raw []byte, trigger string, counted bool) (*Outcome, error) {
	status, detail, evt := c.evaluate(ctx, raw)
	eventID := row.EventID
	if evt != nil && evt.EventID != "" {
		eventID = evt.EventID
	}
	return c.finish(ctx, row.ID, eventID, raw, status, detail, trigger, counted)
}

// evaluate runs the payload through the processors and maps the result to
// a reprocess status.
func (c *Coordinator) evaluate(ctx context.Context, raw []byte) (status models.WebhookLogStatus, detail string, evt *billing.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[RetryCoordinator] CRITICAL panic while reprocessing: %v", r)
			status = models.WebhookStatusReprocessUnexpected
			detail = fmt.Sprintf("Unexpected error: %v", r)
		}
	}()

	evt, err := billing.ParseEvent(raw)
	if err != nil {
		return models.WebhookStatusReprocessJSON, "Payload could not be parsed: " + err.Error(), nil
	}

	res, err := c.dispatcher.Dispatch(ctx, evt.EventType, evt.Data)
	switch {
	case err != nil:
		log.Errorf("[RetryCoordinator] CRITICAL processing event %s failed: %v", evt.EventID, err)
		return models.WebhookStatusReprocessUnexpected, "Unexpected error: " + err.Error(), evt
	case res.OK:
		return models.WebhookStatusReprocessed, res.Detail, evt
	case res.MissingLink:
		return models.WebhookStatusPendingMissingLink, res.Detail, evt
	default:
		return models.WebhookStatusReprocessFailed, res.Detail, evt
	}
}

// finish records the attempt on the row, escalates at the ceiling and
// updates the schedule.
func (c *Coordinator) finish(ctx context.Context, logID uint, eventID string, raw []byte, status models.WebhookLogStatus, detail, trigger string, counted bool) (*Outcome, error) {
	now := c.now().UTC()
	row, err := c.logs.Update(ctx, logID, func(l *models.WebhookLog) error {
		if counted {
			l.RecordRetryAttempt(now)
		}
		entry := fmt.Sprintf("[%s] %s reprocess -> %s: %s", now.Format(time.RFC3339), trigger, status, detail)
		next := status
		if counted && status != models.WebhookStatusReprocessed && l.RetryCount >= c.maxRetries {
			next = models.WebhookStatusMaxRetries
		}
		if err := l.TransitionTo(next, entry); err != nil {
			return err
		}
		if next != status {
			l.AppendDetail(fmt.Sprintf("Retry ceiling of %d reached, manual review required", c.maxRetries))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record reprocess outcome on log %d: %w", logID, err)
	}

	metrics.Reprocessed.WithLabelValues(trigger, string(row.Status)).Inc()
	log.Infof("[RetryCoordinator] Log %d (%s) %s reprocess: %s", row.ID, eventID, trigger, row.Status)

	if row.Status.IsActionable() && row.RetryCount < c.maxRetries {
		c.scheduleRow(ctx, row)
	} else {
		c.unschedule(ctx, row.ID)
	}

	if row.Status == models.WebhookStatusReprocessed && !row.ForwardedToHub && raw != nil {
		c.reforward(ctx, row, eventID, raw)
	}

	return &Outcome{
		LogID:      row.ID,
		EventID:    eventID,
		Status:     row.Status,
		RetryCount: row.RetryCount,
		Detail:     detail,
	}, nil
}

// reforward enqueues a hub forward for a row that was reprocessed but never
// reached the hub.
func (c *Coordinator) reforward(ctx context.Context, row *models.WebhookLog, eventID string, raw []byte) {
	if c.forwards == nil {
		return
	}
	note := "Forward to hub re-enqueued"
	if err := c.forwards.EnqueueForward(ctx, hub.ForwardJob{LogID: row.ID, EventID: eventID, Payload: raw}); err != nil {
		log.Errorf("[RetryCoordinator] Could not re-enqueue forward for log %d: %v", row.ID, err)
		note = "Forward to hub could not be re-enqueued: " + err.Error()
	}
	if _, err := c.logs.Update(ctx, row.ID, func(l *models.WebhookLog) error {
		l.AppendDetail(note)
		return nil
	}); err != nil {
		log.Errorf("[RetryCoordinator] Could not note forward on log %d: %v", row.ID, err)
	}
}

// guard turns a panic in a reprocess attempt into a trigger failure on the row.
func (c *Coordinator) guard(ctx context.Context, logID uint, trigger string, fn func() (*Outcome, error)) (out *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[RetryCoordinator] CRITICAL %s reprocess trigger for log %d panicked: %v", trigger, logID, r)
			out, err = c.finish(ctx, logID, "", nil, models.WebhookStatusReprocessTrigger,
				fmt.Sprintf("Reprocess trigger failed: %v", r), trigger, trigger == TriggerScheduled)
		}
	}()
	return fn()
}

func (c *Coordinator) scheduleRow(ctx context.Context, row *models.WebhookLog) {
	if c.schedule == nil {
		return
	}
	if err := c.schedule.Schedule(ctx, row.ID, NextAttemptAt(row)); err != nil {
		log.Warnf("[RetryCoordinator] Could not schedule log %d: %v", row.ID, err)
	}
}

func (c *Coordinator) unschedule(ctx context.Context, logID uint) {
	if c.schedule == nil {
		return
	}
	if err := c.schedule.Remove(ctx, logID); err != nil {
		log.Warnf("[RetryCoordinator] Could not unschedule log %d: %v", logID, err)
	}
}

func reprocessable(s models.WebhookLogStatus) bool {
	return s.IsActionable() || s == models.WebhookStatusMaxRetries
}
