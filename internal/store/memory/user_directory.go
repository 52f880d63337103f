package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/mailroster/internal/models"
	"github.com/wolfeidau/mailroster/internal/store"
)

// UserDirectory implements store.UserDirectory using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*models.User // user_id -> User
}

// NewUserDirectory creates a new in-memory user directory.
func NewUserDirectory(users ...*models.User) *UserDirectory {
	d := &UserDirectory{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		clone := *u
		d.users[u.UserID] = &clone
	}
	return d
}

// Get retrieves a user by ID.
func (d *UserDirectory) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, exists := d.users[userID]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	// Clone to avoid external modifications
	clone := *user
	return &clone, nil
}

// ListActiveUsers returns active users of a company, ordered by name.
func (d *UserDirectory) ListActiveUsers(ctx context.Context, companyID uuid.UUID, excluding ...uuid.UUID) ([]*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*models.User
	for _, u := range d.users {
		if u.CompanyID != companyID || !u.Active || slices.Contains(excluding, u.UserID) {
			continue
		}
		clone := *u
		result = append(result, &clone)
	}

	slices.SortFunc(result, func(a, b *models.User) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

// Upsert creates or replaces a user.
func (d *UserDirectory) Upsert(ctx context.Context, user *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	clone := *user
	d.users[user.UserID] = &clone
	return nil
}
