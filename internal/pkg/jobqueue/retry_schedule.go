package jobqueue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/mybizz/mybizz/internal/pkg/metrics"
)

// RetryScheduleKey is the sorted set of webhook log ids scored by the unix
// time of their next eligible retry.
const RetryScheduleKey = "webhook_retry_schedule"

// RetrySchedule is the Redis-backed retry queue of the coordinator.
type RetrySchedule struct {
	client *redis.Client
	key    string
}

func NewRetrySchedule(client *redis.Client) *RetrySchedule {
	return &RetrySchedule{client: client, key: RetryScheduleKey}
}

// Schedule sets the next eligible attempt time for a log row.
func (s *RetrySchedule) Schedule(ctx context.Context, logID uint, at time.Time) error {
	err := s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(at.Unix()),
		Member: strconv.FormatUint(uint64(logID), 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule retry for log %d: %w", logID, err)
	}
	s.refreshGauge(ctx)
	return nil
}

// Due returns up to limit log ids whose retry time is at or before now,
// earliest first.
func (s *RetrySchedule) Due(ctx context.Context, now time.Time, limit int) ([]uint, error) {
	members, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    strconv.FormatInt(now.Unix(), 10),
		Offset: 0,
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read due retries: %w", err)
	}

	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			log.Warnf("[RetrySchedule] Dropping invalid member %q", m)
			_ = s.client.ZRem(ctx, s.key, m).Err()
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// Remove drops a log row from the schedule.
func (s *RetrySchedule) Remove(ctx context.Context, logID uint) error {
	if err := s.client.ZRem(ctx, s.key, strconv.FormatUint(uint64(logID), 10)).Err(); err != nil {
		return fmt.Errorf("remove log %d from retry schedule: %w", logID, err)
	}
	s.refreshGauge(ctx)
	return nil
}

// Size returns the number of scheduled rows.
func (s *RetrySchedule) Size(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, s.key).Result()
}

func (s *RetrySchedule) refreshGauge(ctx context.Context) {
	if n, err := s.Size(ctx); err == nil {
		metrics.RetryScheduleSize.Set(float64(n))
	}
}
