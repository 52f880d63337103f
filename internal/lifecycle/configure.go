package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/catalog"
	"github.com/wolfeidau/mailroster/internal/models"
	"github.com/wolfeidau/mailroster/internal/store"
)

// CredentialsInput carries a plaintext login/secret pair; the secret is sealed before storage.
type CredentialsInput struct {
	Login  string
	Secret string
}

// AccountConfig is the configuration applied by ConfigurePrincipal and AddAccount.
type AccountConfig struct {
	PlatformID  string
	TypeID      string
	ProtocolID  string
	State       models.AccountState // active or inactive, defaults to active
	Credentials *CredentialsInput
	Notes       *string

	// Address is only used by ConfigurePrincipal when a new account has to be created.
	Address string
}

// AddAccountInput is the input of AddAccount.
type AddAccountInput struct {
	UserID      uuid.UUID
	CompanyID   uuid.UUID
	Address     string
	Config      AccountConfig
	AsPrincipal bool
	Provenance  string
}

func (c *AccountConfig) validate(ctx context.Context, resolver catalog.Resolver) error {
	if c.State == "" {
		c.State = models.AccountStateActive
	}
	if c.State != models.AccountStateActive && c.State != models.AccountStateInactive {
		return newError(ErrInvalidState, "configured state must be active or inactive, got %q", c.State)
	}
	return resolveRefs(ctx, resolver, c.PlatformID, c.TypeID, c.ProtocolID)
}

// resolveRefs checks that all three references resolve. Empty references are invalid.
func resolveRefs(ctx context.Context, resolver catalog.Resolver, platformID, typeID, protocolID string) error {
	check := func(kind, id string, resolve func() error) error {
		if id == "" {
			return newError(ErrInvalidCatalogReference, "%s is required", kind)
		}
		if err := resolve(); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return wrapError(ErrInvalidCatalogReference, err, "%s %q does not resolve", kind, id)
			}
			return fmt.Errorf("failed to resolve %s %q: %w", kind, id, err)
		}
		return nil
	}

	if err := check("platform", platformID, func() error {
		_, err := resolver.ResolvePlatform(ctx, platformID)
		return err
	}); err != nil {
		return err
	}
	if err := check("type", typeID, func() error {
		_, err := resolver.ResolveType(ctx, typeID)
		return err
	}); err != nil {
		return err
	}
	return check("protocol", protocolID, func() error {
		_, err := resolver.ResolveProtocol(ctx, protocolID)
		return err
	})
}

func (e *Engine) sealCredentials(in *CredentialsInput) (*models.Credentials, error) {
	if in == nil {
		return nil, nil
	}
	creds := &models.Credentials{Login: in.Login}
	if in.Secret != "" {
		sealed, err := e.sealer.Seal(in.Secret)
		if err != nil {
			return nil, fmt.Errorf("failed to seal credentials: %w", err)
		}
		creds.Secret = sealed
	}
	return creds, nil
}

func (e *Engine) applyConfig(account *models.EmailAccount, cfg AccountConfig, actor Actor) error {
	account.PlatformID = cfg.PlatformID
	account.TypeID = cfg.TypeID
	account.ProtocolID = cfg.ProtocolID
	account.State = cfg.State
	if cfg.Credentials != nil {
		creds, err := e.sealCredentials(cfg.Credentials)
		if err != nil {
			return err
		}
		account.Credentials = creds
	}
	if cfg.Notes != nil {
		account.Notes = *cfg.Notes
	}
	configuredBy := actor.ID
	account.ConfiguredBy = &configuredBy
	return nil
}

// ConfigurePrincipal configures userID's principal account. It updates the current
// principal if there is one, otherwise the oldest pending account, otherwise it creates a
// new account from cfg.Address. The result is always principal.
func (e *Engine) ConfigurePrincipal(ctx context.Context, userID, companyID uuid.UUID, cfg AccountConfig) (*models.EmailAccount, error) {
	if err := cfg.validate(ctx, e.catalog); err != nil {
		return nil, err
	}
	actor := e.actorFor(ctx, userID)

	var result *models.EmailAccount
	err := e.run(ctx, "configure_principal", func(ctx context.Context, w *unitOfWork) error {
		if err := w.accounts.LockOwners(ctx, userID); err != nil {
			return err
		}
		if err := e.checkOwner(ctx, userID, companyID); err != nil {
			return err
		}

		target, err := findConfigurable(ctx, w, userID)
		if err != nil {
			return err
		}

		now := w.clock.Now()
		create := target == nil
		if create {
			address := strings.TrimSpace(cfg.Address)
			if address == "" {
				return newError(ErrAddressRequired, "user %s has no principal or pending account; an address is required", userID)
			}
			if err := checkAddressFree(ctx, w, userID, address, uuid.Nil); err != nil {
				return err
			}
			target = &models.EmailAccount{
				AccountID: uuid.Must(uuid.NewV7()),
				UserID:    userID,
				CompanyID: companyID,
				Address:   address,
				CreatedAt: now,
			}
		} else if target.Address == "" && strings.TrimSpace(cfg.Address) != "" {
			target.Address = strings.TrimSpace(cfg.Address)
		}

		if err := e.applyConfig(target, cfg, actor); err != nil {
			return err
		}
		target.IsPrincipal = true
		target.UpdatedAt = now

		if create {
			err = w.accounts.Create(ctx, target)
		} else {
			err = w.accounts.Update(ctx, target)
		}
		if err != nil {
			return fmt.Errorf("failed to store principal account: %w", err)
		}

		w.record(&models.OwnershipEvent{
			AccountID: target.AccountID,
			Kind:      models.EventConfiguration,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			OwnerID:   userID,
			Notes:     target.Notes,
		})
		result = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("account_id", result.AccountID.String()).Str("user_id", userID.String()).Msg("Configured principal account")
	return result, nil
}

// findConfigurable returns the account ConfigurePrincipal should update, or nil if a new
// one must be created.
func findConfigurable(ctx context.Context, w *unitOfWork, userID uuid.UUID) (*models.EmailAccount, error) {
	principal, err := w.accounts.GetPrincipal(ctx, userID)
	if err == nil {
		return w.accounts.GetForUpdate(ctx, principal.AccountID)
	}
	if !errors.Is(err, store.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}

	owned, err := w.accounts.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned accounts: %w", err)
	}
	for _, a := range owned {
		if a.State == models.AccountStatePending && !a.IsPlaceholder() {
			return w.accounts.GetForUpdate(ctx, a.AccountID)
		}
	}
	return nil, nil
}

// AddAccount creates a new, fully configured account. With AsPrincipal the owner's
// current principal is demoted in the same transaction.
func (e *Engine) AddAccount(ctx context.Context, in AddAccountInput) (*models.EmailAccount, error) {
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, newError(ErrAddressRequired, "address must not be empty")
	}
	if err := in.Config.validate(ctx, e.catalog); err != nil {
		return nil, err
	}
	actor := e.actorFor(ctx, in.UserID)

	var result *models.EmailAccount
	err := e.run(ctx, "add_account", func(ctx context.Context, w *unitOfWork) error {
		if err := w.accounts.LockOwners(ctx, in.UserID); err != nil {
			return err
		}
		if err := e.checkOwner(ctx, in.UserID, in.CompanyID); err != nil {
			return err
		}
		if err := checkAddressFree(ctx, w, in.UserID, address, uuid.Nil); err != nil {
			return err
		}

		now := w.clock.Now()
		account := &models.EmailAccount{
			AccountID: uuid.Must(uuid.NewV7()),
			UserID:    in.UserID,
			CompanyID: in.CompanyID,
			Address:   address,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.applyConfig(account, in.Config, actor); err != nil {
			return err
		}

		if in.AsPrincipal {
			demoted, err := e.demotePrincipal(ctx, w, in.UserID, account.AccountID, actor, "new principal account added", in.Provenance)
			if err != nil {
				return err
			}
			account.IsPrincipal = true
			if demoted {
				w.recordPrincipalChange(account, models.EventMarkedPrincipal, actor, "new principal account added", in.Provenance)
			}
		}

		if err := w.accounts.Create(ctx, account); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		w.record(&models.OwnershipEvent{
			AccountID:  account.AccountID,
			Kind:       models.EventCreation,
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			OwnerID:    in.UserID,
			Notes:      account.Notes,
			Provenance: in.Provenance,
		})
		result = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("account_id", result.AccountID.String()).Str("user_id", in.UserID.String()).Bool("principal", result.IsPrincipal).Msg("Added account")
	return result, nil
}

// SeedPending creates a minimal pending account for a newly created user. Seeding the
// same address twice returns the existing pending account.
func (e *Engine) SeedPending(ctx context.Context, userID, companyID uuid.UUID, address string) (*models.EmailAccount, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, newError(ErrAddressRequired, "address must not be empty")
	}

	var result *models.EmailAccount
	err := e.run(ctx, "seed_pending", func(ctx context.Context, w *unitOfWork) error {
		if err := w.accounts.LockOwners(ctx, userID); err != nil {
			return err
		}
		if err := e.checkOwner(ctx, userID, companyID); err != nil {
			return err
		}

		owned, err := w.accounts.ListByOwner(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list owned accounts: %w", err)
		}
		for _, a := range owned {
			if a.IsPlaceholder() || models.NormalizeAddress(a.Address) != models.NormalizeAddress(address) {
				continue
			}
			if a.State == models.AccountStatePending {
				result = a
				return nil
			}
			return newError(ErrDuplicateAddressForUser, "%s already owns %s (account %s)", userID, address, a.AccountID)
		}

		now := w.clock.Now()
		account := &models.EmailAccount{
			AccountID: uuid.Must(uuid.NewV7()),
			UserID:    userID,
			CompanyID: companyID,
			Address:   address,
			State:     models.AccountStatePending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := w.accounts.Create(ctx, account); err != nil {
			return fmt.Errorf("failed to create pending account: %w", err)
		}
		result = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DiscardPending physically deletes an account that never left pending, is not principal
// and has no ledger history.
func (e *Engine) DiscardPending(ctx context.Context, accountID uuid.UUID) error {
	err := e.run(ctx, "discard_pending", func(ctx context.Context, w *unitOfWork) error {
		account, err := w.accounts.GetForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if account.State != models.AccountStatePending || account.IsPrincipal {
			return newError(ErrNotDiscardable, "account %s is %s (principal=%t)", accountID, account.State, account.IsPrincipal)
		}
		hasHistory, err := w.ledger.HasHistory(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to check history: %w", err)
		}
		if hasHistory {
			return newError(ErrNotDiscardable, "account %s has ledger history", accountID)
		}
		return w.accounts.Delete(ctx, accountID)
	})
	if err != nil {
		return err
	}

	log.Info().Str("account_id", accountID.String()).Msg("Discarded pending account")
	return nil
}
