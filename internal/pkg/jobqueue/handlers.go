package jobqueue

import (
	"context"
	"fmt"
	"strings"

	"github.com/mybizz/mybizz/internal/pkg/hub"
	"github.com/mybizz/mybizz/internal/pkg/payloadarchive"
)

// ForwardRunner executes a hub forward.
type ForwardRunner interface {
	Run(ctx context.Context, job hub.ForwardJob) error
}

// ArchiveRunner writes a raw payload to the archive.
type ArchiveRunner interface {
	Archive(ctx context.Context, job payloadarchive.Job) error
}

// EnqueueForward implements hub.Enqueuer.
func (q *Queue) EnqueueForward(ctx context.Context, job hub.ForwardJob) error {
	payload := ForwardJobPayload{LogID: job.LogID, EventID: job.EventID, Body: string(job.Payload)}
	_, err := q.EnqueueJob(ctx, JobTypeForwardToHub, payload.ToMap())
	return err
}

// EnqueueArchive implements payloadarchive.Enqueuer.
func (q *Queue) EnqueueArchive(ctx context.Context, job payloadarchive.Job) error {
	payload := ArchivePayloadJobPayload{
		LogID:      job.LogID,
		EventID:    job.EventID,
		ReceivedAt: job.ReceivedAt,
		Body:       string(job.Payload),
	}
	_, err := q.EnqueueJob(ctx, JobTypeArchivePayload, payload.ToMap())
	return err
}

// ForwardHandler adapts a ForwardRunner to the queue.
func ForwardHandler(r ForwardRunner) Handler {
	return func(ctx context.Context, job *Job) error {
		p, err := ForwardJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("failed to parse forward job payload: %w", err)
		}
		if p.LogID == 0 || strings.TrimSpace(p.Body) == "" {
			return fmt.Errorf("forward job %s is missing log id or body", job.ID)
		}
		return r.Run(ctx, hub.ForwardJob{LogID: p.LogID, EventID: p.EventID, Payload: []byte(p.Body)})
	}
}

// ArchiveHandler adapts an ArchiveRunner to the queue.
func ArchiveHandler(r ArchiveRunner) Handler {
	return func(ctx context.Context, job *Job) error {
		p, err := ArchivePayloadJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("failed to parse archive job payload: %w", err)
		}
		return r.Archive(ctx, payloadarchive.Job{
			LogID:      p.LogID,
			EventID:    p.EventID,
			ReceivedAt: p.ReceivedAt,
			Payload:    []byte(p.Body),
		})
	}
}
