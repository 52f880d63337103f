package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/mailroster/internal/models"
)

// Sentinel errors for account store operations
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
)

// AccountStore provides durable keyed storage for email account records.
type AccountStore interface {
	// Get retrieves an account by ID.
	// Returns ErrAccountNotFound if the account doesn't exist.
	Get(ctx context.Context, accountID uuid.UUID) (*models.EmailAccount, error)

	// GetForUpdate retrieves an account and locks it until the enclosing transaction ends.
	// Outside a transaction it behaves like Get.
	GetForUpdate(ctx context.Context, accountID uuid.UUID) (*models.EmailAccount, error)

	// LockOwners serializes principal changes for the given owners until the enclosing
	// transaction ends. Owners are locked in a stable order.
	LockOwners(ctx context.Context, userIDs ...uuid.UUID) error

	// ListByOwner returns all accounts currently owned by userID, oldest first.
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]*models.EmailAccount, error)

	// ListByIDs returns the accounts with the given IDs; unknown IDs are skipped.
	ListByIDs(ctx context.Context, accountIDs []uuid.UUID) ([]*models.EmailAccount, error)

	// GetPrincipal returns the principal account currently owned by userID.
	// Returns ErrAccountNotFound if the user has none.
	GetPrincipal(ctx context.Context, userID uuid.UUID) (*models.EmailAccount, error)

	// Create inserts a new account with Version 1.
	// Returns ErrAccountAlreadyExists on duplicate ID and ErrConflict if the account is
	// principal and the owner already has one.
	Create(ctx context.Context, account *models.EmailAccount) error

	// Update writes the account if its stored version equals account.Version, then
	// increments account.Version. Returns ErrConflict on version mismatch and
	// ErrAccountNotFound if the account doesn't exist.
	Update(ctx context.Context, account *models.EmailAccount) error

	// Delete physically removes an account.
	// Returns ErrAccountNotFound if the account doesn't exist.
	Delete(ctx context.Context, accountID uuid.UUID) error
}
