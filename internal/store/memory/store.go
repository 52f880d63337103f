package memory

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/mailroster/internal/models"
	"github.com/wolfeidau/mailroster/internal/store"
)

// Store implements store.Transactor using in-memory storage.
// Transactions are exclusive and copy-on-write: fn works on a private copy of the
// dataset which replaces the live one only when fn succeeds.
// This implementation is for testing and development only - data is lost on restart.
type Store struct {
	mu   sync.RWMutex
	data *dataset
}

var _ store.Transactor = (*Store)(nil)

// NewStore creates a new in-memory account store and ledger.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// Accounts returns the account store outside of any transaction.
// Each write is committed on its own.
func (s *Store) Accounts() store.AccountStore {
	return &accountStore{s: s}
}

// Ledger returns the ledger outside of any transaction.
func (s *Store) Ledger() store.Ledger {
	return &ledger{s: s}
}

// WithinTx runs fn against a private copy of the data and publishes it on success.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo store.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txRepo{ds: s.data.clone()}
	err := fn(ctx, tx)
	tx.done = true
	if err != nil {
		return err
	}

	// a caller that gave up must not observe partial effects
	if err := ctx.Err(); err != nil {
		return err
	}

	s.data = tx.ds
	return nil
}

func (s *Store) read(fn func(tx *txRepo) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&txRepo{ds: s.data})
}

func (s *Store) write(ctx context.Context, fn func(tx *txRepo) error) error {
	return s.WithinTx(ctx, func(_ context.Context, repo store.Repository) error {
		return fn(repo.(*txRepo))
	})
}

type dataset struct {
	accounts  map[uuid.UUID]*models.EmailAccount // account_id -> account
	events    []*models.OwnershipEvent
	byAccount map[uuid.UUID][]int // account_id -> indexes into events
	seq       int64
}

func newDataset() *dataset {
	return &dataset{
		accounts:  make(map[uuid.UUID]*models.EmailAccount),
		byAccount: make(map[uuid.UUID][]int),
	}
}

// clone copies the containers. Stored records are never mutated in place, so the
// records themselves can be shared between generations.
func (d *dataset) clone() *dataset {
	byAccount := make(map[uuid.UUID][]int, len(d.byAccount))
	for id, idx := range d.byAccount {
		byAccount[id] = slices.Clone(idx)
	}
	return &dataset{
		accounts:  maps.Clone(d.accounts),
		events:    slices.Clip(d.events),
		byAccount: byAccount,
		seq:       d.seq,
	}
}

type txRepo struct {
	ds   *dataset
	done bool
}

func (r *txRepo) Accounts() store.AccountStore { return &txAccounts{r: r} }
func (r *txRepo) Ledger() store.Ledger         { return &txLedger{r: r} }

func (r *txRepo) check() error {
	if r.done {
		return store.ErrTxDone
	}
	return nil
}

type txAccounts struct {
	r *txRepo
}

func (a *txAccounts) Get(ctx context.Context, accountID uuid.UUID) (*models.EmailAccount, error) {
	if err := a.r.check(); err != nil {
		return nil, err
	}
	account, exists := a.r.ds.accounts[accountID]
	if !exists {
		return nil, store.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// GetForUpdate is Get: the transaction already holds the store exclusively.
func (a *txAccounts) GetForUpdate(ctx context.Context, accountID uuid.UUID) (*models.EmailAccount, error) {
	return a.Get(ctx, accountID)
}

func (a *txAccounts) LockOwners(ctx context.Context, userIDs ...uuid.UUID) error {
	return a.r.check()
}

func (a *txAccounts) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*models.EmailAccount, error) {
	if err := a.r.check(); err != nil {
		return nil, err
	}
	var result []*models.EmailAccount
	for _, account := range a.r.ds.accounts {
		if account.UserID == userID {
			result = append(result, account.Clone())
		}
	}
	sortAccounts(result)
	return result, nil
}

func (a *txAccounts) ListByIDs(ctx context.Context, accountIDs []uuid.UUID) ([]*models.EmailAccount, error) {
	if err := a.r.check(); err != nil {
		return nil, err
	}
	result := make([]*models.EmailAccount, 0, len(accountIDs))
	for _, id := range accountIDs {
		if account, exists := a.r.ds.accounts[id]; exists {
			result = append(result, account.Clone())
		}
	}
	return result, nil
}

func (a *txAccounts) GetPrincipal(ctx context.Context, userID uuid.UUID) (*models.EmailAccount, error) {
	if err := a.r.check(); err != nil {
		return nil, err
	}
	principal := a.r.ds.principalOf(userID, uuid.Nil)
	if principal == nil {
		return nil, store.ErrAccountNotFound
	}
	return principal.Clone(), nil
}

func (a *txAccounts) Create(ctx context.Context, account *models.EmailAccount) error {
	if err := a.r.check(); err != nil {
		return err
	}
	if _, exists := a.r.ds.accounts[account.AccountID]; exists {
		return store.ErrAccountAlreadyExists
	}
	if account.IsPrincipal && a.r.ds.principalOf(account.UserID, account.AccountID) != nil {
		return fmt.Errorf("%w: owner %s already has a principal account", store.ErrConflict, account.UserID)
	}

	account.Version = 1
	a.r.ds.accounts[account.AccountID] = account.Clone()
	return nil
}

func (a *txAccounts) Update(ctx context.Context, account *models.EmailAccount) error {
	if err := a.r.check(); err != nil {
		return err
	}
	existing, exists := a.r.ds.accounts[account.AccountID]
	if !exists {
		return store.ErrAccountNotFound
	}
	if existing.Version != account.Version {
		return fmt.Errorf("%w: account %s is at version %d, not %d",
			store.ErrConflict, account.AccountID, existing.Version, account.Version)
	}
	if account.IsPrincipal && a.r.ds.principalOf(account.UserID, account.AccountID) != nil {
		return fmt.Errorf("%w: owner %s already has a principal account", store.ErrConflict, account.UserID)
	}

	account.Version++
	a.r.ds.accounts[account.AccountID] = account.Clone()
	return nil
}

func (a *txAccounts) Delete(ctx context.Context, accountID uuid.UUID) error {
	if err := a.r.check(); err != nil {
		return err
	}
	if _, exists := a.r.ds.accounts[accountID]; !exists {
		return store.ErrAccountNotFound
	}
	delete(a.r.ds.accounts, accountID)
	return nil
}

// principalOf returns the principal account owned by userID other than except.
func (d *dataset) principalOf(userID, except uuid.UUID) *models.EmailAccount {
	for id, account := range d.accounts {
		if id != except && account.UserID == userID && account.IsPrincipal {
			return account
		}
	}
	return nil
}

type txLedger struct {
	r *txRepo
}

func (l *txLedger) Append(ctx context.Context, events ...*models.OwnershipEvent) error {
	if err := l.r.check(); err != nil {
		return err
	}
	ds := l.r.ds
	for _, event := range events {
		ds.seq++
		event.Seq = ds.seq
		ds.events = append(ds.events, event.Clone())
		ds.byAccount[event.AccountID] = append(ds.byAccount[event.AccountID], len(ds.events)-1)
	}
	return nil
}

func (l *txLedger) History(ctx context.Context, accountID uuid.UUID) ([]*models.OwnershipEvent, error) {
	if err := l.r.check(); err != nil {
		return nil, err
	}
	idx := l.r.ds.byAccount[accountID]
	result := make([]*models.OwnershipEvent, 0, len(idx))
	for _, i := range idx {
		result = append(result, l.r.ds.events[i].Clone())
	}
	return result, nil
}

func (l *txLedger) HasHistory(ctx context.Context, accountID uuid.UUID) (bool, error) {
	if err := l.r.check(); err != nil {
		return false, err
	}
	return len(l.r.ds.byAccount[accountID]) > 0, nil
}

func (l *txLedger) ReassignedFrom(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if err := l.r.check(); err != nil {
		return nil, err
	}
	var result []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, event := range l.r.ds.events {
		if event.Kind != models.EventReassignmentOut || event.OwnerID != userID || seen[event.AccountID] {
			continue
		}
		seen[event.AccountID] = true
		result = append(result, event.AccountID)
	}
	return result, nil
}

func sortAccounts(accounts []*models.EmailAccount) {
	slices.SortFunc(accounts, func(a, b *models.EmailAccount) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(a.AccountID[:], b.AccountID[:])
	})
}
