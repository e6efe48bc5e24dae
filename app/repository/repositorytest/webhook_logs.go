// Package repositorytest provides in-memory repositories for handler and
// worker tests.
package repositorytest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mybizz/mybizz/app/models"
	"github.com/mybizz/mybizz/app/repository"
	"gorm.io/gorm"
)

var _ repository.WebhookLogRepository = (*WebhookLogs)(nil)

// WebhookLogs is a concurrency-safe in-memory WebhookLogRepository.
type WebhookLogs struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.WebhookLog
	// FailUpdate, when set, is returned by every Update call.
	FailUpdate error
}

func NewWebhookLogs() *WebhookLogs {
	return &WebhookLogs{rows: map[uint]*models.WebhookLog{}}
}

func (r *WebhookLogs) Create(_ context.Context, l *models.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	l.ID = r.nextID
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	l.UpdatedAt = l.CreatedAt
	c := *l
	r.rows[l.ID] = &c
	return nil
}

func (r *WebhookLogs) GetByID(_ context.Context, id uint) (*models.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *row
	return &c, nil
}

func (r *WebhookLogs) ListByStatuses(_ context.Context, statuses []models.WebhookLogStatus, limit int) ([]models.WebhookLog, error) {
	out := r.filter(func(l *models.WebhookLog) bool { return hasStatus(statuses, l.Status) })
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	return truncate(out, limit), nil
}

func (r *WebhookLogs) ListRetryCandidates(_ context.Context, statuses []models.WebhookLogStatus, maxRetries, limit int) ([]models.WebhookLog, error) {
	out := r.filter(func(l *models.WebhookLog) bool {
		return hasStatus(statuses, l.Status) && l.RetryCount < maxRetries
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return truncate(out, limit), nil
}

func (r *WebhookLogs) Update(_ context.Context, id uint, fn func(l *models.WebhookLog) error) (*models.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdate != nil {
		return nil, r.FailUpdate
	}
	row, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *row
	if err := fn(&c); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now()
	r.rows[id] = &c
	out := c
	return &out, nil
}

// Get returns a copy of the row or nil.
func (r *WebhookLogs) Get(id uint) *models.WebhookLog {
	l, err := r.GetByID(context.Background(), id)
	if err != nil {
		return nil
	}
	return l
}

// All returns copies of every row ordered by id.
func (r *WebhookLogs) All() []models.WebhookLog {
	out := r.filter(func(*models.WebhookLog) bool { return true })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Seed stores a prepared row, assigning an id when missing.
func (r *WebhookLogs) Seed(l models.WebhookLog) *models.WebhookLog {
	if l.ReceivedAt.IsZero() {
		l.ReceivedAt = time.Now().UTC()
	}
	if l.ID != 0 {
		r.mu.Lock()
		if l.ID > r.nextID {
			r.nextID = l.ID
		}
		c := l
		r.rows[l.ID] = &c
		r.mu.Unlock()
		return &l
	}
	_ = r.Create(context.Background(), &l)
	return &l
}

func (r *WebhookLogs) filter(keep func(*models.WebhookLog) bool) []models.WebhookLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.WebhookLog{}
	for _, row := range r.rows {
		if keep(row) {
			out = append(out, *row)
		}
	}
	return out
}

func hasStatus(statuses []models.WebhookLogStatus, s models.WebhookLogStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func truncate(rows []models.WebhookLog, limit int) []models.WebhookLog {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
