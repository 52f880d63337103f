//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/mailroster/internal/catalog"
	"github.com/wolfeidau/mailroster/internal/lifecycle"
	"github.com/wolfeidau/mailroster/internal/models"
	"github.com/wolfeidau/mailroster/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, *Store, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := NewPool(ctx, &PoolConfig{
		ConnString: fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
	})
	require.NoError(t, err)

	s, err := NewStore(ctx, pool, &StoreConfig{AutoMigrate: true})
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return pool, s, cleanup
}

func newAccount(owner uuid.UUID, address string) *models.EmailAccount {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.EmailAccount{
		AccountID:  uuid.Must(uuid.NewV7()),
		UserID:     owner,
		CompanyID:  uuid.Must(uuid.NewV7()),
		Address:    address,
		PlatformID: "workspace",
		TypeID:     "corporate",
		ProtocolID: "imap",
		State:      models.AccountStateActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestIntegration_Store(t *testing.T) {
	ctx := context.Background()
	pool, s, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	t.Run("migrations are idempotent", func(t *testing.T) {
		require.NoError(t, Migrate(ctx, pool))
	})

	t.Run("create and get account", func(t *testing.T) {
		owner := uuid.Must(uuid.NewV7())
		account := newAccount(owner, "a@co.com")
		account.Credentials = &models.Credentials{Login: "alice", Secret: "aesgcm:xyz"}
		configuredBy := uuid.Must(uuid.NewV7())
		account.ConfiguredBy = &configuredBy

		require.NoError(t, s.Accounts().Create(ctx, account))
		require.Equal(t, int64(1), account.Version)

		got, err := s.Accounts().Get(ctx, account.AccountID)
		require.NoError(t, err)
		require.Equal(t, account.Address, got.Address)
		require.Equal(t, account.Credentials, got.Credentials)
		require.Equal(t, configuredBy, *got.ConfiguredBy)
		require.Nil(t, got.AliasOf)
		require.Nil(t, got.ReassignedAt)

		require.ErrorIs(t, s.Accounts().Create(ctx, account), store.ErrAccountAlreadyExists)

		_, err = s.Accounts().Get(ctx, uuid.Must(uuid.NewV7()))
		require.ErrorIs(t, err, store.ErrAccountNotFound)
	})

	t.Run("single principal index", func(t *testing.T) {
		owner := uuid.Must(uuid.NewV7())
		first := newAccount(owner, "a@co.com")
		first.IsPrincipal = true
		require.NoError(t, s.Accounts().Create(ctx, first))

		second := newAccount(owner, "b@co.com")
		second.IsPrincipal = true
		require.ErrorIs(t, s.Accounts().Create(ctx, second), store.ErrConflict)

		principal, err := s.Accounts().GetPrincipal(ctx, owner)
		require.NoError(t, err)
		require.Equal(t, first.AccountID, principal.AccountID)
	})

	t.Run("optimistic version check", func(t *testing.T) {
		account := newAccount(uuid.Must(uuid.NewV7()), "a@co.com")
		require.NoError(t, s.Accounts().Create(ctx, account))

		stale := account.Clone()
		account.Notes = "first"
		require.NoError(t, s.Accounts().Update(ctx, account))
		require.Equal(t, int64(2), account.Version)

		stale.Notes = "second"
		require.ErrorIs(t, s.Accounts().Update(ctx, stale), store.ErrConflict)

		missing := newAccount(uuid.Must(uuid.NewV7()), "x@co.com")
		missing.Version = 1
		require.ErrorIs(t, s.Accounts().Update(ctx, missing), store.ErrAccountNotFound)
	})

	t.Run("transaction rollback", func(t *testing.T) {
		account := newAccount(uuid.Must(uuid.NewV7()), "a@co.com")
		err := s.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
			require.NoError(t, repo.Accounts().Create(ctx, account))
			return fmt.Errorf("abort")
		})
		require.Error(t, err)

		_, err = s.Accounts().Get(ctx, account.AccountID)
		require.ErrorIs(t, err, store.ErrAccountNotFound)
	})

	t.Run("ledger is append only", func(t *testing.T) {
		origin := uuid.Must(uuid.NewV7())
		account := newAccount(origin, "a@co.com")
		require.NoError(t, s.Accounts().Create(ctx, account))

		destination := uuid.Must(uuid.NewV7())
		events := []*models.OwnershipEvent{
			{EventID: uuid.Must(uuid.NewV7()), AccountID: account.AccountID, Kind: models.EventCreation, Timestamp: time.Now(), OwnerID: origin},
			{
				EventID:   uuid.Must(uuid.NewV7()),
				AccountID: account.AccountID,
				Kind:      models.EventEdit,
				Timestamp: time.Now(),
				OwnerID:   origin,
				Reason:    "rename",
				Changes:   []models.FieldChange{{Field: "address", Before: "a@co.com", After: "b@co.com"}},
			},
			{
				EventID:           uuid.Must(uuid.NewV7()),
				AccountID:         account.AccountID,
				Kind:              models.EventReassignmentOut,
				Timestamp:         time.Now(),
				OwnerID:           origin,
				CorrelationID:     "abc",
				DestinationUserID: &destination,
			},
		}
		require.NoError(t, s.Ledger().Append(ctx, events...))
		require.Less(t, events[0].Seq, events[1].Seq)
		require.Less(t, events[1].Seq, events[2].Seq)

		history, err := s.Ledger().History(ctx, account.AccountID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		require.Equal(t, events[1].Changes, history[1].Changes)
		require.Equal(t, destination, *history[2].DestinationUserID)
		require.Nil(t, history[2].OriginUserID)

		reassigned, err := s.Ledger().ReassignedFrom(ctx, origin)
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{account.AccountID}, reassigned)

		_, err = pool.Exec(ctx, `UPDATE ownership_events SET reason = 'x' WHERE account_id = $1`, account.AccountID)
		require.Error(t, err)

		// accounts with history cannot be deleted
		require.Error(t, s.Accounts().Delete(ctx, account.AccountID))
	})

	t.Run("user directory", func(t *testing.T) {
		d := NewUserDirectory(pool)
		company := uuid.Must(uuid.NewV7())
		zoe := &models.User{UserID: uuid.Must(uuid.NewV7()), CompanyID: company, Name: "Zoe", Active: true}
		adam := &models.User{UserID: uuid.Must(uuid.NewV7()), CompanyID: company, Name: "Adam", Active: true}
		gone := &models.User{UserID: uuid.Must(uuid.NewV7()), CompanyID: company, Name: "Gone"}
		for _, u := range []*models.User{zoe, adam, gone} {
			require.NoError(t, d.Upsert(ctx, u))
		}

		users, err := d.ListActiveUsers(ctx, company)
		require.NoError(t, err)
		require.Len(t, users, 2)
		require.Equal(t, "Adam", users[0].Name)

		users, err = d.ListActiveUsers(ctx, company, adam.UserID)
		require.NoError(t, err)
		require.Len(t, users, 1)
		require.Equal(t, "Zoe", users[0].Name)

		_, err = d.Get(ctx, uuid.Must(uuid.NewV7()))
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})
}

func TestIntegration_LifecycleEngine(t *testing.T) {
	ctx := context.Background()
	pool, s, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	resolver, err := catalog.NewStaticResolver(catalog.Catalog{
		Platforms: []models.Platform{{ID: "workspace", Name: "Workspace", AllowsReassignment: true}},
		Types:     []models.AccountType{{ID: "corporate", Name: "Corporate"}},
		Protocols: []models.Protocol{{ID: "imap", Name: "IMAP"}},
	})
	require.NoError(t, err)

	users := NewUserDirectory(pool)
	company := uuid.Must(uuid.NewV7())
	alice := &models.User{UserID: uuid.Must(uuid.NewV7()), CompanyID: company, Name: "Alice", Active: true}
	bob := &models.User{UserID: uuid.Must(uuid.NewV7()), CompanyID: company, Name: "Bob", Active: true}
	require.NoError(t, users.Upsert(ctx, alice))
	require.NoError(t, users.Upsert(ctx, bob))

	engine := lifecycle.NewEngine(s, users, resolver)
	cfg := lifecycle.AccountConfig{PlatformID: "workspace", TypeID: "corporate", ProtocolID: "imap"}

	t.Run("concurrent principal requests leave one principal", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := engine.AddAccount(ctx, lifecycle.AddAccountInput{
					UserID:      alice.UserID,
					CompanyID:   company,
					Address:     fmt.Sprintf("mailbox%d@co.com", i),
					Config:      cfg,
					AsPrincipal: true,
				})
				if err != nil {
					require.ErrorIs(t, err, lifecycle.ErrConcurrentModification)
				}
			}()
		}
		wg.Wait()

		var principals int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM email_accounts WHERE user_id = $1 AND is_principal`, alice.UserID).Scan(&principals))
		require.Equal(t, 1, principals)
	})

	t.Run("reassignment", func(t *testing.T) {
		inactive := cfg
		inactive.State = models.AccountStateInactive
		account, err := engine.AddAccount(ctx, lifecycle.AddAccountInput{
			UserID:    alice.UserID,
			CompanyID: company,
			Address:   "handover@co.com",
			Config:    inactive,
		})
		require.NoError(t, err)

		result, err := engine.Reassign(ctx, account.AccountID, alice.UserID, bob.UserID, lifecycle.ReassignOptions{
			KeepAddress:        true,
			Pass:               lifecycle.PassPrincipal,
			KeepAliasForOrigin: true,
		}, "handover")
		require.NoError(t, err)
		require.True(t, result.Account.IsPrincipal)
		require.NotNil(t, result.Placeholder)

		history, err := engine.GetHistory(ctx, account.AccountID)
		require.NoError(t, err)
		require.Len(t, history, 4)
		for i := 1; i < len(history); i++ {
			require.True(t, history[i-1].Timestamp.Before(history[i].Timestamp))
		}

		views, err := engine.ListAccounts(ctx, alice.UserID)
		require.NoError(t, err)
		var sawReassigned bool
		for _, v := range views {
			if v.Account.AccountID == account.AccountID {
				sawReassigned = true
				require.False(t, v.IsCurrentOwner)
				require.Equal(t, models.AccountStateReassigned, v.State)
			}
		}
		require.True(t, sawReassigned)
	})
}
