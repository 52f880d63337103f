package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/models"
	"github.com/wolfeidau/mailroster/internal/store"
)

const accountColumns = `
	account_id, user_id, company_id, address,
	platform_id, type_id, protocol_id, state, is_principal,
	credentials_login, credentials_secret, configured_by, notes,
	previous_owner_id, reassigned_at, alias_of,
	version, created_at, updated_at`

// accountStore implements store.AccountStore on a pool or a transaction.
type accountStore struct {
	q    querier
	inTx bool
}

func scanAccount(row pgx.Row) (*models.EmailAccount, error) {
	var (
		a             models.EmailAccount
		state         string
		login, secret *string
	)
	err := row.Scan(
		&a.AccountID,
		&a.UserID,
		&a.CompanyID,
		&a.Address,
		&a.PlatformID,
		&a.TypeID,
		&a.ProtocolID,
		&state,
		&a.IsPrincipal,
		&login,
		&secret,
		&a.ConfiguredBy,
		&a.Notes,
		&a.PreviousOwnerID,
		&a.ReassignedAt,
		&a.AliasOf,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.State = models.AccountState(state)
	if login != nil || secret != nil {
		a.Credentials = &models.Credentials{}
		if login != nil {
			a.Credentials.Login = *login
		}
		if secret != nil {
			a.Credentials.Secret = *secret
		}
	}
	return &a, nil
}

func collectAccounts(rows pgx.Rows) ([]*models.EmailAccount, error) {
	defer rows.Close()

	var accounts []*models.EmailAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", mapPostgresError(err))
	}
	return accounts, nil
}

func credentialArgs(c *models.Credentials) (login, secret any) {
	if c == nil {
		return nil, nil
	}
	return c.Login, c.Secret
}

func (s *accountStore) get(ctx context.Context, accountID uuid.UUID, lock bool) (*models.EmailAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM email_accounts WHERE account_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	account, err := scanAccount(s.q.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", mapPostgresError(err))
	}
	return account, nil
}

// Get retrieves an account by ID.
func (s *accountStore) Get(ctx context.Context, accountID uuid.UUID) (*models.EmailAccount, error) {
	return s.get(ctx, accountID, false)
}

// GetForUpdate retrieves an account with a row lock when called inside a transaction.
func (s *accountStore) GetForUpdate(ctx context.Context, accountID uuid.UUID) (*models.EmailAccount, error) {
	return s.get(ctx, accountID, s.inTx)
}

// LockOwners takes a transaction scoped advisory lock per owner, in UUID order so that
// two transactions locking the same pair cannot deadlock.
func (s *accountStore) LockOwners(ctx context.Context, userIDs ...uuid.UUID) error {
	if !s.inTx {
		return nil
	}

	ids := slices.Clone(userIDs)
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	ids = slices.Compact(ids)

	for _, id := range ids {
		if _, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, id.String()); err != nil {
			return fmt.Errorf("failed to lock owner %s: %w", id, mapPostgresError(err))
		}
	}
	return nil
}

// ListByOwner returns accounts owned by userID, oldest first.
func (s *accountStore) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*models.EmailAccount, error) {
	rows, err := s.q.Query(ctx, `SELECT `+accountColumns+`
		FROM email_accounts
		WHERE user_id = $1
		ORDER BY created_at, account_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", mapPostgresError(err))
	}
	return collectAccounts(rows)
}

// ListByIDs returns the accounts with the given IDs in the order requested.
func (s *accountStore) ListByIDs(ctx context.Context, accountIDs []uuid.UUID) ([]*models.EmailAccount, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	rows, err := s.q.Query(ctx, `SELECT `+accountColumns+`
		FROM email_accounts
		WHERE account_id = ANY($1)`, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", mapPostgresError(err))
	}
	found, err := collectAccounts(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*models.EmailAccount, len(found))
	for _, a := range found {
		byID[a.AccountID] = a
	}
	accounts := make([]*models.EmailAccount, 0, len(found))
	for _, id := range accountIDs {
		if a, ok := byID[id]; ok {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

// GetPrincipal returns the principal account owned by userID.
func (s *accountStore) GetPrincipal(ctx context.Context, userID uuid.UUID) (*models.EmailAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM email_accounts WHERE user_id = $1 AND is_principal`
	if s.inTx {
		query += ` FOR UPDATE`
	}

	account, err := scanAccount(s.q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get principal account: %w", mapPostgresError(err))
	}
	return account, nil
}

// Create inserts a new account at version 1.
func (s *accountStore) Create(ctx context.Context, account *models.EmailAccount) error {
	login, secret := credentialArgs(account.Credentials)
	_, err := s.q.Exec(ctx, `
		INSERT INTO email_accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1, $17, $18)`,
		account.AccountID,
		account.UserID,
		account.CompanyID,
		account.Address,
		account.PlatformID,
		account.TypeID,
		account.ProtocolID,
		string(account.State),
		account.IsPrincipal,
		login,
		secret,
		account.ConfiguredBy,
		account.Notes,
		account.PreviousOwnerID,
		account.ReassignedAt,
		account.AliasOf,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	account.Version = 1

	log.Debug().
		Str("account_id", account.AccountID.String()).
		Str("user_id", account.UserID.String()).
		Str("state", string(account.State)).
		Msg("Created account")
	return nil
}

// Update writes the account if its stored version still equals account.Version.
func (s *accountStore) Update(ctx context.Context, account *models.EmailAccount) error {
	login, secret := credentialArgs(account.Credentials)
	tag, err := s.q.Exec(ctx, `
		UPDATE email_accounts SET
			user_id = $2,
			company_id = $3,
			address = $4,
			platform_id = $5,
			type_id = $6,
			protocol_id = $7,
			state = $8,
			is_principal = $9,
			credentials_login = $10,
			credentials_secret = $11,
			configured_by = $12,
			notes = $13,
			previous_owner_id = $14,
			reassigned_at = $15,
			alias_of = $16,
			updated_at = $17,
			version = version + 1
		WHERE account_id = $1 AND version = $18`,
		account.AccountID,
		account.UserID,
		account.CompanyID,
		account.Address,
		account.PlatformID,
		account.TypeID,
		account.ProtocolID,
		string(account.State),
		account.IsPrincipal,
		login,
		secret,
		account.ConfiguredBy,
		account.Notes,
		account.PreviousOwnerID,
		account.ReassignedAt,
		account.AliasOf,
		account.UpdatedAt,
		account.Version,
	)
	if err != nil {
		return mapPostgresError(err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM email_accounts WHERE account_id = $1)`, account.AccountID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check account: %w", mapPostgresError(err))
		}
		if !exists {
			return store.ErrAccountNotFound
		}
		return fmt.Errorf("%w: account %s is no longer at version %d", store.ErrConflict, account.AccountID, account.Version)
	}

	account.Version++
	return nil
}

// Delete removes an account. Accounts with ledger history are protected by a foreign key.
func (s *accountStore) Delete(ctx context.Context, accountID uuid.UUID) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM email_accounts WHERE account_id = $1`, accountID)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrAccountNotFound
	}

	log.Debug().Str("account_id", accountID.String()).Msg("Deleted account")
	return nil
}
