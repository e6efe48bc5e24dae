package repositorytest

import (
	"context"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/mybizz/mybizz/app/models"
	"github.com/mybizz/mybizz/app/repository"
)

var _ repository.UserRepository = (*Users)(nil)

// Users is an in-memory UserRepository.
type Users struct {
	mu      sync.Mutex
	nextID  uint
	users   map[uint]*models.User
	apiKeys map[uint]*models.UserAPIKey
}

func NewUsers() *Users {
	return &Users{users: map[uint]*models.User{}, apiKeys: map[uint]*models.UserAPIKey{}}
}

func (r *Users) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = r.nextID
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *Users) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *u
	return &c, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			c := *u
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *Users) GetByAPIKeyHash(_ context.Context, hash string) (*models.User, *models.UserAPIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, k := range r.apiKeys {
		if k.IsActive() && k.KeyHash == hash {
			u, ok := r.users[userID]
			if !ok {
				break
			}
			cu, ck := *u, *k
			return &cu, &ck, nil
		}
	}
	return nil, nil, gorm.ErrRecordNotFound
}

func (r *Users) GetOrCreateAPIKey(_ context.Context, userID uint) (*models.UserAPIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.apiKeys[userID]
	if !ok {
		k = &models.UserAPIKey{ID: userID, UserID: userID}
		r.apiKeys[userID] = k
	}
	c := *k
	return &c, nil
}

func (r *Users) SaveAPIKey(_ context.Context, key *models.UserAPIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *key
	r.apiKeys[key.UserID] = &c
	return nil
}

func (r *Users) Update(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	c := *u
	r.users[u.ID] = &c
	return nil
}

// APIKey returns a copy of the stored key of userID, or nil.
func (r *Users) APIKey(userID uint) *models.UserAPIKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.apiKeys[userID]
	if !ok {
		return nil
	}
	c := *k
	return &c
}
