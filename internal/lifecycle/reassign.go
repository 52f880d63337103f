package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/catalog"
	"github.com/wolfeidau/mailroster/internal/models"
	"github.com/wolfeidau/mailroster/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Pass selects how the destination receives a reassigned account.
type Pass string

const (
	PassPrincipal Pass = "principal"
	PassSecondary Pass = "secondary"
)

// ReassignOptions controls a reassignment.
type ReassignOptions struct {
	// NameForNewOwner is the destination name recorded in the ledger. Defaults to the
	// destination's directory name.
	NameForNewOwner string
	KeepAddress     bool
	NewAddress      string // required when KeepAddress is false
	Pass            Pass
	// KeepAliasForOrigin leaves a non-reassignable alias record with the origin user.
	KeepAliasForOrigin bool
	Provenance         string
}

func (o *ReassignOptions) validate() error {
	switch o.Pass {
	case "":
		o.Pass = PassSecondary
	case PassPrincipal, PassSecondary:
	default:
		return newError(ErrInvalidReassignOptions, "pass must be principal or secondary, got %q", o.Pass)
	}
	if !o.KeepAddress && strings.TrimSpace(o.NewAddress) == "" {
		return newError(ErrAddressRequired, "a new address is required when the address is not kept")
	}
	return nil
}

// ReassignResult is the reassigned account with both ledger entries.
type ReassignResult struct {
	Account     *models.EmailAccount
	Out         *models.OwnershipEvent
	In          *models.OwnershipEvent
	Placeholder *models.EmailAccount // set when an alias was kept for the origin
}

// Reassign transfers an inactive account from actingUserID to destinationUserID. The
// account record keeps its ID; the origin keeps read-only visibility through the ledger.
func (e *Engine) Reassign(ctx context.Context, accountID, actingUserID, destinationUserID uuid.UUID, opts ReassignOptions, reason string) (*ReassignResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newError(ErrReasonRequired, "a reason is required to reassign an account")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if destinationUserID == actingUserID {
		return nil, newError(ErrSameOwner, "destination %s already owns the account", destinationUserID)
	}
	actor := e.actorFor(ctx, actingUserID)

	result := &ReassignResult{}
	err := e.run(ctx, "reassign", func(ctx context.Context, w *unitOfWork) error {
		account, err := w.lockOwned(ctx, accountID, actingUserID, destinationUserID)
		if err != nil {
			return err
		}
		if err := e.checkReassignable(ctx, account); err != nil {
			return err
		}

		destination, err := e.users.Get(ctx, destinationUserID)
		if err != nil {
			return err
		}
		if destination.CompanyID != account.CompanyID {
			return newError(ErrCrossCompanyReassignment, "destination %s belongs to another company", destinationUserID)
		}
		if !destination.Active {
			return newError(ErrInactiveDestination, "destination %s is not an active user", destinationUserID)
		}

		originAddress := account.Address
		address := originAddress
		if !opts.KeepAddress {
			address = strings.TrimSpace(opts.NewAddress)
		}
		if err := checkAddressFree(ctx, w, destinationUserID, address, account.AccountID); err != nil {
			return err
		}

		originID := account.UserID
		originName := ""
		if origin, err := e.users.Get(ctx, originID); err == nil {
			originName = origin.Name
		}
		destinationName := opts.NameForNewOwner
		if destinationName == "" {
			destinationName = destination.Name
		}

		wasPrincipal := account.IsPrincipal
		now := w.clock.Now()
		account.UserID = destinationUserID
		account.Address = address
		account.IsPrincipal = false
		account.PreviousOwnerID = &originID
		account.ReassignedAt = &now
		account.State = models.AccountStateActive
		account.UpdatedAt = now

		correlation := uuid.Must(uuid.NewV7())
		correlationID := base58.Encode(correlation[:])
		result.Out = w.record(&models.OwnershipEvent{
			AccountID:           account.AccountID,
			Kind:                models.EventReassignmentOut,
			ActorID:             actor.ID,
			ActorName:           actor.Name,
			OwnerID:             originID,
			Reason:              reason,
			Provenance:          opts.Provenance,
			CorrelationID:       correlationID,
			DestinationUserID:   &destinationUserID,
			DestinationUserName: destinationName,
			WasPrincipal:        wasPrincipal,
		})
		result.In = w.record(&models.OwnershipEvent{
			AccountID:      account.AccountID,
			Kind:           models.EventReassignmentIn,
			ActorID:        actor.ID,
			ActorName:      actor.Name,
			OwnerID:        destinationUserID,
			Reason:         reason,
			Provenance:     opts.Provenance,
			CorrelationID:  correlationID,
			OriginUserID:   &originID,
			OriginUserName: originName,
		})

		switch opts.Pass {
		case PassPrincipal:
			if _, err := e.demotePrincipal(ctx, w, destinationUserID, account.AccountID, actor, reason, opts.Provenance); err != nil {
				return err
			}
			account.IsPrincipal = true
			w.recordPrincipalChange(account, models.EventMarkedPrincipal, actor, reason, opts.Provenance)
		case PassSecondary:
			_, err := w.accounts.GetPrincipal(ctx, destinationUserID)
			switch {
			case err == nil:
				account.State = models.AccountStateAlias
			case !errors.Is(err, store.ErrAccountNotFound):
				return fmt.Errorf("failed to load destination principal: %w", err)
			}
		}

		if err := w.accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("failed to transfer account: %w", err)
		}
		result.Account = account

		if opts.KeepAliasForOrigin {
			placeholder, err := e.keepAlias(ctx, w, account, originID, originAddress, actor, reason, opts.Provenance)
			if err != nil {
				return err
			}
			result.Placeholder = placeholder
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.ReassignmentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("pass", string(opts.Pass))))
	log.Info().
		Str("account_id", accountID.String()).
		Str("origin_user_id", actingUserID.String()).
		Str("destination_user_id", destinationUserID.String()).
		Str("correlation_id", result.Out.CorrelationID).
		Str("state", string(result.Account.State)).
		Msg("Reassigned account")
	return result, nil
}

// checkReassignable enforces the state and platform preconditions of a reassignment.
func (e *Engine) checkReassignable(ctx context.Context, account *models.EmailAccount) error {
	if account.IsPlaceholder() {
		return newError(ErrPlaceholderNotReassignable, "account %s is an alias kept for a previous owner", account.AccountID)
	}
	if account.State != models.AccountStateInactive {
		return newError(ErrAccountNotInactive, "account %s must be inactive to be reassigned, it is %s", account.AccountID, account.State)
	}

	platform, err := e.catalog.ResolvePlatform(ctx, account.PlatformID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return wrapError(ErrReassignmentNotAllowedByPlatform, err, "platform %q of account %s does not resolve", account.PlatformID, account.AccountID)
	case err != nil:
		return fmt.Errorf("failed to resolve platform %q: %w", account.PlatformID, err)
	}
	if !platform.AllowsReassignment {
		return newError(ErrReassignmentNotAllowedByPlatform, "platform %s does not allow reassignment", platform.Name)
	}
	return nil
}

// keepAlias creates the origin's placeholder for a reassigned account.
func (e *Engine) keepAlias(ctx context.Context, w *unitOfWork, account *models.EmailAccount, originID uuid.UUID, address string, actor Actor, reason, provenance string) (*models.EmailAccount, error) {
	now := w.clock.Now()
	aliasOf := account.AccountID
	configuredBy := actor.ID
	placeholder := &models.EmailAccount{
		AccountID:    uuid.Must(uuid.NewV7()),
		UserID:       originID,
		CompanyID:    account.CompanyID,
		Address:      address,
		PlatformID:   account.PlatformID,
		TypeID:       account.TypeID,
		ProtocolID:   account.ProtocolID,
		State:        models.AccountStateAlias,
		ConfiguredBy: &configuredBy,
		AliasOf:      &aliasOf,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := w.accounts.Create(ctx, placeholder); err != nil {
		return nil, fmt.Errorf("failed to create origin alias: %w", err)
	}
	w.record(&models.OwnershipEvent{
		AccountID:  placeholder.AccountID,
		Kind:       models.EventCreation,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		OwnerID:    originID,
		Reason:     reason,
		Notes:      fmt.Sprintf("alias of reassigned account %s", account.AccountID),
		Provenance: provenance,
	})
	return placeholder, nil
}
