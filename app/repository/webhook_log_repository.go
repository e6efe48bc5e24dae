package repository

import (
	"context"

	"github.com/mybizz/mybizz/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a webhook log repository backed by GORM.
func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

func (r *webhookLogRepository) Create(ctx context.Context, log *models.WebhookLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *webhookLogRepository) GetByID(ctx context.Context, id uint) (*models.WebhookLog, error) {
	var log models.WebhookLog
	if err := r.db.WithContext(ctx).First(&log, id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// ListByStatuses returns rows in any of the given statuses, newest first.
func (r *webhookLogRepository) ListByStatuses(ctx context.Context, statuses []models.WebhookLogStatus, limit int) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	if len(statuses) == 0 {
		return logs, nil
	}
	q := r.db.WithContext(ctx).Where("status IN ?", statuses).Order("received_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&logs).Error
	return logs, err
}

// ListRetryCandidates returns rows eligible for a scheduled retry, oldest first.
func (r *webhookLogRepository) ListRetryCandidates(ctx context.Context, statuses []models.WebhookLogStatus, maxRetries, limit int) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	if len(statuses) == 0 {
		return logs, nil
	}
	q := r.db.WithContext(ctx).
		Where("status IN ? AND retry_count < ?", statuses, maxRetries).
		Order("received_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&logs).Error
	return logs, err
}

func (r *webhookLogRepository) Update(ctx context.Context, id uint, fn func(log *models.WebhookLog) error) (*models.WebhookLog, error) {
	var out models.WebhookLog
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&out, id).Error; err != nil {
			return err
		}
		if err := fn(&out); err != nil {
			return err
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
