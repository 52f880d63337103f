package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/wolfeidau/mailroster/internal/models"
)

// Ledger is the append-only log of ownership and state transition events.
// There is no update or delete operation.
type Ledger interface {
	// Append stores events in the given order, assigning each a sequence number.
	Append(ctx context.Context, events ...*models.OwnershipEvent) error

	// History returns every event for an account in append order.
	History(ctx context.Context, accountID uuid.UUID) ([]*models.OwnershipEvent, error)

	// HasHistory reports whether any event exists for an account.
	HasHistory(ctx context.Context, accountID uuid.UUID) (bool, error)

	// ReassignedFrom returns the IDs of accounts userID has reassigned away, in the order the
	// reassignment_out events were appended. IDs are unique.
	ReassignedFrom(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}
