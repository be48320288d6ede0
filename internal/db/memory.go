package db

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wuwenbin0122/authgate/internal/models"
)

// MemoryUserRepository keeps users in process memory. It enforces the same
// unique constraints as the Mongo indexes and is used where no server is available.
type MemoryUserRepository struct {
	mu           sync.RWMutex
	usersByName  map[string]*models.User
	usersByEmail map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		usersByName:  make(map[string]*models.User),
		usersByEmail: make(map[string]*models.User),
	}
}

func (r *MemoryUserRepository) FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	if user, ok := r.usersByEmail[email]; ok {
		return copyUser(user), nil
	}
	if user, ok := r.usersByName[username]; ok {
		return copyUser(user), nil
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	if user, ok := r.usersByEmail[email]; ok {
		return copyUser(user), nil
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.usersByEmail[user.Email]; exists {
		return &DuplicateKeyError{Field: FieldEmail}
	}
	if _, exists := r.usersByName[user.Username]; exists {
		return &DuplicateKeyError{Field: FieldUsername}
	}

	user.ID = primitive.NewObjectID().Hex()
	stored := copyUser(user)
	r.usersByName[stored.Username] = stored
	r.usersByEmail[stored.Email] = stored

	return nil
}

// Len reports the number of stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.usersByName)
}

func copyUser(user *models.User) *models.User {
	clone := *user
	return &clone
}
