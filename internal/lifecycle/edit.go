package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/models"
)

// AccountPatch lists the fields EditAccount changes; nil fields are left as they are.
type AccountPatch struct {
	Address     *string
	PlatformID  *string
	TypeID      *string
	ProtocolID  *string
	Credentials *CredentialsInput
	Notes       *string
	IsPrincipal *bool

	// ExpectedVersion, when set, must match the stored version.
	ExpectedVersion *int64
}

// EditAccount applies patch to an account owned by actingUserID and records an edit
// event with a before/after summary.
func (e *Engine) EditAccount(ctx context.Context, accountID, actingUserID uuid.UUID, patch AccountPatch, reason string) (*models.EmailAccount, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newError(ErrReasonRequired, "a reason is required to edit an account")
	}
	if patch.Address != nil && strings.TrimSpace(*patch.Address) == "" {
		return nil, newError(ErrAddressRequired, "address must not be empty")
	}
	actor := e.actorFor(ctx, actingUserID)

	var result *models.EmailAccount
	err := e.run(ctx, "edit_account", func(ctx context.Context, w *unitOfWork) error {
		account, err := w.lockOwned(ctx, accountID, actingUserID)
		if err != nil {
			return err
		}
		if patch.ExpectedVersion != nil && *patch.ExpectedVersion != account.Version {
			return newError(ErrConcurrentModification, "account %s is at version %d, expected %d", accountID, account.Version, *patch.ExpectedVersion)
		}

		changes, err := e.applyPatch(ctx, w, account, patch)
		if err != nil {
			return err
		}

		if patch.IsPrincipal != nil && *patch.IsPrincipal != account.IsPrincipal {
			changes = append(changes, models.FieldChange{
				Field:  "isPrincipal",
				Before: strconv.FormatBool(account.IsPrincipal),
				After:  strconv.FormatBool(*patch.IsPrincipal),
			})
			if *patch.IsPrincipal {
				if account.IsPlaceholder() || account.State == models.AccountStatePending {
					return newError(ErrAccountNotEditable, "a %s account cannot become principal", describeKind(account))
				}
				if _, err := e.demotePrincipal(ctx, w, account.UserID, account.AccountID, actor, reason, ""); err != nil {
					return err
				}
				account.IsPrincipal = true
				w.recordPrincipalChange(account, models.EventMarkedPrincipal, actor, reason, "")
			} else {
				account.IsPrincipal = false
				w.recordPrincipalChange(account, models.EventUnmarkedPrincipal, actor, reason, "")
			}
		}

		account.UpdatedAt = w.clock.Now()
		if err := w.accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		w.record(&models.OwnershipEvent{
			AccountID: account.AccountID,
			Kind:      models.EventEdit,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			OwnerID:   account.UserID,
			Reason:    reason,
			Changes:   changes,
		})
		result = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("account_id", accountID.String()).Str("user_id", actingUserID.String()).Msg("Edited account")
	return result, nil
}

func describeKind(a *models.EmailAccount) string {
	if a.IsPlaceholder() {
		return "placeholder"
	}
	return string(a.State)
}

// applyPatch writes the non-principal fields of patch onto account and returns the changes.
func (e *Engine) applyPatch(ctx context.Context, w *unitOfWork, account *models.EmailAccount, patch AccountPatch) ([]models.FieldChange, error) {
	var changes []models.FieldChange
	set := func(field string, dst *string, value *string) {
		if value == nil || *dst == *value {
			return
		}
		changes = append(changes, models.FieldChange{Field: field, Before: *dst, After: *value})
		*dst = *value
	}

	if patch.Address != nil {
		address := strings.TrimSpace(*patch.Address)
		if models.NormalizeAddress(address) != models.NormalizeAddress(account.Address) {
			if err := checkAddressFree(ctx, w, account.UserID, address, account.AccountID); err != nil {
				return nil, err
			}
		}
		set("address", &account.Address, &address)
	}

	if patch.PlatformID != nil || patch.TypeID != nil || patch.ProtocolID != nil {
		platformID, typeID, protocolID := account.PlatformID, account.TypeID, account.ProtocolID
		if patch.PlatformID != nil {
			platformID = *patch.PlatformID
		}
		if patch.TypeID != nil {
			typeID = *patch.TypeID
		}
		if patch.ProtocolID != nil {
			protocolID = *patch.ProtocolID
		}
		if err := resolveRefs(ctx, e.catalog, platformID, typeID, protocolID); err != nil {
			return nil, err
		}
		set("platformId", &account.PlatformID, patch.PlatformID)
		set("typeId", &account.TypeID, patch.TypeID)
		set("protocolId", &account.ProtocolID, patch.ProtocolID)
	}

	if patch.Credentials != nil {
		creds, err := e.sealCredentials(patch.Credentials)
		if err != nil {
			return nil, err
		}
		before := "none"
		if account.Credentials != nil {
			before = account.Credentials.Login
		}
		// Secrets never appear in the ledger.
		changes = append(changes, models.FieldChange{Field: "credentials", Before: before, After: creds.Login})
		account.Credentials = creds
	}

	set("notes", &account.Notes, patch.Notes)
	return changes, nil
}

// Deactivate moves an active, pending or alias account to inactive.
func (e *Engine) Deactivate(ctx context.Context, accountID, actingUserID uuid.UUID, reason, provenance string) (*models.EmailAccount, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newError(ErrReasonRequired, "a reason is required to deactivate an account")
	}
	actor := e.actorFor(ctx, actingUserID)

	var result *models.EmailAccount
	err := e.run(ctx, "deactivate", func(ctx context.Context, w *unitOfWork) error {
		account, err := w.lockOwned(ctx, accountID, actingUserID)
		if err != nil {
			return err
		}

		switch account.State {
		case models.AccountStateActive, models.AccountStatePending, models.AccountStateAlias:
		case models.AccountStateInactive:
			return newError(ErrAlreadyInactive, "account %s is already inactive", accountID)
		default:
			return newError(ErrInvalidState, "account %s is in unexpected state %q", accountID, account.State)
		}

		account.State = models.AccountStateInactive
		account.UpdatedAt = w.clock.Now()
		if err := w.accounts.Update(ctx, account); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		w.record(&models.OwnershipEvent{
			AccountID:  account.AccountID,
			Kind:       models.EventDeactivation,
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			OwnerID:    account.UserID,
			Reason:     reason,
			Provenance: provenance,
		})
		result = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("account_id", accountID.String()).Str("reason", reason).Msg("Deactivated account")
	return result, nil
}
