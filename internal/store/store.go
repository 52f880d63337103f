package store

import (
	"context"
	"errors"
)

// Sentinel errors for common error conditions
var (
	// ErrConflict is returned when a write loses a race: an optimistic version check failed,
	// or a uniqueness constraint (one principal per owner) rejected the write.
	ErrConflict = errors.New("concurrent modification conflict")

	// ErrTxDone is returned when a repository bound to a finished transaction is used.
	ErrTxDone = errors.New("transaction already finished")
)

// Repository groups the stores that participate in a single unit of work.
type Repository interface {
	Accounts() AccountStore
	Ledger() Ledger
}

// Transactor runs functions inside a transaction spanning the account store and the ledger.
// Either every write made through the Repository passed to fn commits, or none does.
type Transactor interface {
	Repository

	// WithinTx runs fn in a transaction. If fn returns an error the transaction is rolled back
	// and the error is returned unchanged.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
