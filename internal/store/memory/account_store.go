package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/wolfeidau/mailroster/internal/models"
)

// accountStore is the non-transactional view of Store's accounts.
// Reads share the read lock; every write is committed as its own transaction.
type accountStore struct {
	s *Store
}

func (a *accountStore) Get(ctx context.Context, accountID uuid.UUID) (*models.EmailAccount, error) {
	var account *models.EmailAccount
	err := a.s.read(func(tx *txRepo) (err error) {
		account, err = tx.Accounts().Get(ctx, accountID)
		return err
	})
	return account, err
}

func (a *accountStore) GetForUpdate(ctx context.Context, accountID uuid.UUID) (*models.EmailAccount, error) {
	return a.Get(ctx, accountID)
}

func (a *accountStore) LockOwners(ctx context.Context, userIDs ...uuid.UUID) error {
	return nil
}

func (a *accountStore) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*models.EmailAccount, error) {
	var accounts []*models.EmailAccount
	err := a.s.read(func(tx *txRepo) (err error) {
		accounts, err = tx.Accounts().ListByOwner(ctx, userID)
		return err
	})
	return accounts, err
}

func (a *accountStore) ListByIDs(ctx context.Context, accountIDs []uuid.UUID) ([]*models.EmailAccount, error) {
	var accounts []*models.EmailAccount
	err := a.s.read(func(tx *txRepo) (err error) {
		accounts, err = tx.Accounts().ListByIDs(ctx, accountIDs)
		return err
	})
	return accounts, err
}

func (a *accountStore) GetPrincipal(ctx context.Context, userID uuid.UUID) (*models.EmailAccount, error) {
	var account *models.EmailAccount
	err := a.s.read(func(tx *txRepo) (err error) {
		account, err = tx.Accounts().GetPrincipal(ctx, userID)
		return err
	})
	return account, err
}

func (a *accountStore) Create(ctx context.Context, account *models.EmailAccount) error {
	return a.s.write(ctx, func(tx *txRepo) error {
		return tx.Accounts().Create(ctx, account)
	})
}

func (a *accountStore) Update(ctx context.Context, account *models.EmailAccount) error {
	return a.s.write(ctx, func(tx *txRepo) error {
		return tx.Accounts().Update(ctx, account)
	})
}

func (a *accountStore) Delete(ctx context.Context, accountID uuid.UUID) error {
	return a.s.write(ctx, func(tx *txRepo) error {
		return tx.Accounts().Delete(ctx, accountID)
	})
}

// ledger is the non-transactional view of Store's ledger.
type ledger struct {
	s *Store
}

func (l *ledger) Append(ctx context.Context, events ...*models.OwnershipEvent) error {
	return l.s.write(ctx, func(tx *txRepo) error {
		return tx.Ledger().Append(ctx, events...)
	})
}

func (l *ledger) History(ctx context.Context, accountID uuid.UUID) ([]*models.OwnershipEvent, error) {
	var events []*models.OwnershipEvent
	err := l.s.read(func(tx *txRepo) (err error) {
		events, err = tx.Ledger().History(ctx, accountID)
		return err
	})
	return events, err
}

func (l *ledger) HasHistory(ctx context.Context, accountID uuid.UUID) (bool, error) {
	var found bool
	err := l.s.read(func(tx *txRepo) (err error) {
		found, err = tx.Ledger().HasHistory(ctx, accountID)
		return err
	})
	return found, err
}

func (l *ledger) ReassignedFrom(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := l.s.read(func(tx *txRepo) (err error) {
		ids, err = tx.Ledger().ReassignedFrom(ctx, userID)
		return err
	})
	return ids, err
}
