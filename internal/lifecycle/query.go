package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/mailroster/internal/models"
	"github.com/wolfeidau/mailroster/internal/store"
)

// ListAccounts returns the accounts userID currently owns, oldest first, followed by the
// accounts userID reassigned away, which render as reassigned and not current.
func (e *Engine) ListAccounts(ctx context.Context, userID uuid.UUID) ([]*models.AccountView, error) {
	owned, err := e.tx.Accounts().ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned accounts: %w", err)
	}

	formerIDs, err := e.tx.Ledger().ReassignedFrom(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reassigned accounts: %w", err)
	}
	var former []*models.EmailAccount
	if len(formerIDs) > 0 {
		former, err = e.tx.Accounts().ListByIDs(ctx, formerIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load reassigned accounts: %w", err)
		}
	}

	// The reads are not one snapshot: an account reassigned between them shows up in both
	// lists, and the later read of it wins.
	gone := make(map[uuid.UUID]bool, len(former))
	for _, a := range former {
		if a.UserID != userID {
			gone[a.AccountID] = true
		}
	}

	listed := make(map[uuid.UUID]bool, len(owned))
	views := make([]*models.AccountView, 0, len(owned)+len(former))
	for _, a := range owned {
		if gone[a.AccountID] {
			continue
		}
		listed[a.AccountID] = true
		views = append(views, models.ViewFor(a, userID))
	}
	for _, a := range former {
		// Accounts that came back to userID are listed once, as owned.
		if listed[a.AccountID] {
			continue
		}
		listed[a.AccountID] = true
		views = append(views, models.ViewFor(a, userID))
	}
	return views, nil
}

// GetPrincipal returns userID's principal account, or nil if there is none.
func (e *Engine) GetPrincipal(ctx context.Context, userID uuid.UUID) (*models.AccountView, error) {
	account, err := e.tx.Accounts().GetPrincipal(ctx, userID)
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}
	return models.ViewFor(account, userID), nil
}

// GetAccount returns one account projected for viewerID.
func (e *Engine) GetAccount(ctx context.Context, accountID, viewerID uuid.UUID) (*models.AccountView, error) {
	account, err := e.tx.Accounts().Get(ctx, accountID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return models.ViewFor(account, viewerID), nil
}

// GetHistory returns every ledger event of an account in append order. History is audit
// data and is not filtered by viewer.
func (e *Engine) GetHistory(ctx context.Context, accountID uuid.UUID) ([]*models.OwnershipEvent, error) {
	events, err := e.tx.Ledger().History(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(events) > 0 {
		return events, nil
	}
	if _, err := e.tx.Accounts().Get(ctx, accountID); err != nil {
		return nil, translateStoreError(err)
	}
	return events, nil
}

// ListReassignmentTargets returns the active users an account can be reassigned to: the
// owner's company minus the owner.
func (e *Engine) ListReassignmentTargets(ctx context.Context, accountID uuid.UUID) ([]*models.User, error) {
	account, err := e.tx.Accounts().Get(ctx, accountID)
	if err != nil {
		return nil, translateStoreError(err)
	}
	users, err := e.users.ListActiveUsers(ctx, account.CompanyID, account.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return users, nil
}
