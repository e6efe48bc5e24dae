package retry

import (
	"context"
	"time"

	"github.com/mybizz/mybizz/app/models"
)

const (
	baseBackoff = time.Minute
	maxBackoff  = time.Hour
)

// Schedule orders webhook log rows by their next eligible retry time.
type Schedule interface {
	Schedule(ctx context.Context, logID uint, at time.Time) error
	Due(ctx context.Context, now time.Time, limit int) ([]uint, error)
	Remove(ctx context.Context, logID uint) error
}

// Backoff returns the wait before the attempt following retryCount
// previous attempts: one minute doubling per attempt, capped at an hour.
func Backoff(retryCount int) time.Duration {
	if retryCount <= 0 {
		return baseBackoff
	}
	if retryCount >= 6 {
		return maxBackoff
	}
	d := baseBackoff << uint(retryCount)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// NextAttemptAt derives the next eligible retry time from the row alone, so
// rebuilding the schedule yields the same scores.
func NextAttemptAt(l *models.WebhookLog) time.Time {
	base := l.ReceivedAt
	if l.LastRetryTimestamp != nil {
		base = *l.LastRetryTimestamp
	}
	return base.Add(Backoff(l.RetryCount))
}
