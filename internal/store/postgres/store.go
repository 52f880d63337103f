package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/store"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store implements store.Transactor using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	cfg  *StoreConfig
}

var _ store.Transactor = (*Store)(nil)

// NewStore creates a PostgreSQL-backed account store and ledger on a shared pool.
func NewStore(ctx context.Context, pool *pgxpool.Pool, cfg *StoreConfig) (*Store, error) {
	if cfg == nil {
		cfg = &StoreConfig{}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &Store{pool: pool, cfg: cfg}, nil
}

// Accounts returns the account store outside of any transaction.
func (s *Store) Accounts() store.AccountStore {
	return &accountStore{q: s.pool}
}

// Ledger returns the ledger outside of any transaction.
func (s *Store) Ledger() store.Ledger {
	return &ledger{q: s.pool}
}

// WithinTx runs fn in a read committed transaction. Rows read with GetForUpdate and
// owners passed to LockOwners stay locked until the transaction ends.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo store.Repository) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	// SET LOCAL does not take bind parameters
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d; SET LOCAL lock_timeout = %d",
		s.cfg.StatementTimeoutMillis, s.cfg.LockTimeoutMillis)); err != nil {
		return fmt.Errorf("failed to configure transaction: %w", mapPostgresError(err))
	}

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapPostgresError(err))
	}
	log.Debug().Msg("Committed transaction")
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type txRepo struct {
	tx pgx.Tx
}

func (r *txRepo) Accounts() store.AccountStore {
	return &accountStore{q: r.tx, inTx: true}
}

func (r *txRepo) Ledger() store.Ledger {
	return &ledger{q: r.tx}
}
