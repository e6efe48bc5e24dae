package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mybizz/mybizz/app/models"
	"github.com/mybizz/mybizz/app/repository"
	"github.com/mybizz/mybizz/internal/pkg/metrics"
)

// ForwardJob is the typed handoff from the ingestion endpoint and the retry
// coordinator to the background forward task.
type ForwardJob struct {
	LogID   uint   `json:"log_id"`
	EventID string `json:"event_id"`
	Payload []byte `json:"payload"`
}

// Enqueuer schedules a forward job for background execution.
type Enqueuer interface {
	EnqueueForward(ctx context.Context, job ForwardJob) error
}

// Sender is the forwarding half of the hub client.
type Sender interface {
	Forward(ctx context.Context, eventID string, raw []byte) (string, error)
}

// Forwarder runs forward jobs and records their outcome on the log row.
type Forwarder struct {
	sender Sender
	logs   repository.WebhookLogRepository
	now    func() time.Time
}

func NewForwarder(sender Sender, logs repository.WebhookLogRepository) *Forwarder {
	return &Forwarder{sender: sender, logs: logs, now: time.Now}
}

// Run forwards one payload. The returned error is non-nil only when the job
// is worth retrying (transport failure or a retryable hub status); the
// outcome is always recorded on the log row first.
func (f *Forwarder) Run(ctx context.Context, job ForwardJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[HubForwarder] CRITICAL panic forwarding event %s (log %d): %v", job.EventID, job.LogID, r)
			metrics.HubForwards.WithLabelValues("task_error").Inc()
			f.record(ctx, job.LogID, models.WebhookStatusForwardingTaskError, false,
				fmt.Sprintf("Forwarding task crashed: %v", r))
			err = nil
		}
	}()

	msg, ferr := f.sender.Forward(ctx, job.EventID, job.Payload)
	if ferr == nil {
		metrics.HubForwards.WithLabelValues("forwarded").Inc()
		log.Infof("[HubForwarder] Event %s (log %d): %s", job.EventID, job.LogID, msg)
		f.record(ctx, job.LogID, models.WebhookStatusForwarded, true, "Forwarded to hub: "+msg)
		return nil
	}

	var statusErr *StatusError
	switch {
	case errors.As(ferr, &statusErr):
		metrics.HubForwards.WithLabelValues("hub_error").Inc()
		log.Warnf("[HubForwarder] Event %s (log %d) rejected by hub: %v", job.EventID, job.LogID, ferr)
		f.record(ctx, job.LogID, models.WebhookStatusHubForwardingError, false, "Hub forwarding failed: "+ferr.Error())
		if statusErr.Retryable() {
			return ferr
		}
		return nil
	case errors.Is(ferr, ErrNotConfigured):
		metrics.HubForwards.WithLabelValues("not_configured").Inc()
		log.Errorf("[HubForwarder] Event %s (log %d) not forwarded: %v", job.EventID, job.LogID, ferr)
		f.record(ctx, job.LogID, models.WebhookStatusForwardingError, false, "Forwarding failed: "+ferr.Error())
		return nil
	default:
		metrics.HubForwards.WithLabelValues("transport_error").Inc()
		log.Warnf("[HubForwarder] Event %s (log %d) forward failed: %v", job.EventID, job.LogID, ferr)
		f.record(ctx, job.LogID, models.WebhookStatusForwardingError, false, "Forwarding failed: "+ferr.Error())
		return ferr
	}
}

// record writes the outcome in its own row-scoped update. Error statuses set
// by processing or retries are sticky: the status only moves when the row is
// still in a forwarding state.
func (f *Forwarder) record(ctx context.Context, logID uint, next models.WebhookLogStatus, forwarded bool, detail string) {
	stamp := f.now().UTC().Format(time.RFC3339)
	_, err := f.logs.Update(ctx, logID, func(l *models.WebhookLog) error {
		if forwarded {
			l.ForwardedToHub = true
		}
		entry := fmt.Sprintf("[%s] %s", stamp, detail)
		if forwardingStatus(l.Status) && l.Status.CanTransitionTo(next) {
			return l.TransitionTo(next, entry)
		}
		l.AppendDetail(entry)
		return nil
	})
	if err != nil {
		log.Errorf("[HubForwarder] CRITICAL could not record forward outcome on log %d: %v", logID, err)
	}
}

func forwardingStatus(s models.WebhookLogStatus) bool {
	switch s {
	case models.WebhookStatusForwardingInitiated,
		models.WebhookStatusForwardingError,
		models.WebhookStatusHubForwardingError:
		return true
	}
	return false
}
