package repository

import (
	"context"

	"github.com/mybizz/mybizz/app/models"
	"gorm.io/gorm"
)

// WebhookLogRepository defines the operations on the webhook audit log.
type WebhookLogRepository interface {
	Create(ctx context.Context, log *models.WebhookLog) error
	GetByID(ctx context.Context, id uint) (*models.WebhookLog, error)
	ListByStatuses(ctx context.Context, statuses []models.WebhookLogStatus, limit int) ([]models.WebhookLog, error)
	ListRetryCandidates(ctx context.Context, statuses []models.WebhookLogStatus, maxRetries, limit int) ([]models.WebhookLog, error)
	// Update loads the row under a row lock, applies fn and saves it in one
	// transaction. A non-nil error from fn aborts without writing.
	Update(ctx context.Context, id uint, fn func(log *models.WebhookLog) error) (*models.WebhookLog, error)
}

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, *models.UserAPIKey, error)
	GetOrCreateAPIKey(ctx context.Context, userID uint) (*models.UserAPIKey, error)
	SaveAPIKey(ctx context.Context, key *models.UserAPIKey) error
	Update(ctx context.Context, user *models.User) error
}

// VaultRepository persists sealed tenant secrets.
type VaultRepository interface {
	Get(ctx context.Context, name string) (*models.VaultSecret, error)
	Upsert(ctx context.Context, secret *models.VaultSecret) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]models.VaultSecret, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User       UserRepository
	WebhookLog WebhookLogRepository
	Vault      VaultRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:       NewUserRepository(db),
		WebhookLog: NewWebhookLogRepository(db),
		Vault:      NewVaultRepository(db),
	}
}
