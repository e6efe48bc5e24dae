package payloadarchive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mybizz/mybizz/app/models"
	"github.com/mybizz/mybizz/app/repository"
)

// Job is one raw payload waiting to be archived.
type Job struct {
	LogID      uint      `json:"log_id"`
	EventID    string    `json:"event_id"`
	ReceivedAt time.Time `json:"received_at"`
	Payload    []byte    `json:"payload"`
}

// Enqueuer schedules an archive job for background execution.
type Enqueuer interface {
	EnqueueArchive(ctx context.Context, job Job) error
}

// Archiver writes raw webhook bodies to object storage and records the key
// on the log row.
type Archiver struct {
	store Store
	logs  repository.WebhookLogRepository
}

func NewArchiver(store Store, logs repository.WebhookLogRepository) *Archiver {
	return &Archiver{store: store, logs: logs}
}

// Archive stores the payload and sets WebhookLog.ArchivedKey.
func (a *Archiver) Archive(ctx context.Context, job Job) error {
	if len(job.Payload) == 0 {
		return errors.New("archive job has no payload")
	}
	key := ObjectKey(job.EventID, job.LogID, job.ReceivedAt)
	if err := a.store.Put(ctx, key, job.Payload); err != nil {
		return err
	}

	_, err := a.logs.Update(ctx, job.LogID, func(l *models.WebhookLog) error {
		l.ArchivedKey = key
		return nil
	})
	if err != nil {
		return fmt.Errorf("record archive key on log %d: %w", job.LogID, err)
	}
	log.Debugf("[PayloadArchive] Archived event %s (log %d) to %s", job.EventID, job.LogID, key)
	return nil
}

// Load returns an archived payload by key.
func (a *Archiver) Load(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrObjectNotFound
	}
	return a.store.Get(ctx, key)
}
