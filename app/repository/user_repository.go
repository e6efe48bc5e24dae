package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/mybizz/mybizz/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAPIKeyHash resolves an active API key hash to its user and key record.
func (r *userRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, *models.UserAPIKey, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, nil, gorm.ErrRecordNotFound
	}
	var key models.UserAPIKey
	query := r.db.WithContext(ctx).Where("key_hash = ? AND key_hash <> '' AND revoked_at IS NULL", trimmed)
	if err := query.First(&key).Error; err != nil {
		return nil, nil, err
	}
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, key.UserID).Error; err != nil {
		return nil, nil, err
	}
	return &user, &key, nil
}

func (r *userRepository) GetOrCreateAPIKey(ctx context.Context, userID uint) (*models.UserAPIKey, error) {
	var key models.UserAPIKey
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&key).Error
	if err == nil {
		return &key, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	key = models.UserAPIKey{UserID: userID}
	if err := r.db.WithContext(ctx).Create(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *userRepository) SaveAPIKey(ctx context.Context, key *models.UserAPIKey) error {
	return r.db.WithContext(ctx).Save(key).Error
}

// Update updates an existing user in the database
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}
