package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/mailroster/internal/models"
)

// Sentinel errors for user directory operations
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserDirectory resolves helpdesk users. It is owned by the user administration module;
// this service only reads it, apart from Upsert which is used for seeding and sync.
type UserDirectory interface {
	// Get retrieves a user by ID.
	// Returns ErrUserNotFound if the user doesn't exist.
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// ListActiveUsers returns active users of a company ordered by name,
	// leaving out any user listed in excluding.
	ListActiveUsers(ctx context.Context, companyID uuid.UUID, excluding ...uuid.UUID) ([]*models.User, error)

	// Upsert creates or replaces a user.
	Upsert(ctx context.Context, user *models.User) error
}
