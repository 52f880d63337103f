package server

import (
	"fmt"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/wolfeidau/mailroster/internal/api/accountv1"
	"github.com/wolfeidau/mailroster/internal/lifecycle"
	"github.com/wolfeidau/mailroster/internal/models"
)

// parseID parses a required UUID field of a request.
func parseID(field, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s is required", field))
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid %s: %w", field, err))
	}
	return id, nil
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// accountToAPI renders an account view. Secrets never leave the service.
func accountToAPI(view *models.AccountView) *accountv1.Account {
	if view == nil {
		return nil
	}
	a := view.Account
	out := &accountv1.Account{
		AccountID:       a.AccountID.String(),
		UserID:          a.UserID.String(),
		CompanyID:       a.CompanyID.String(),
		Address:         a.Address,
		PlatformID:      a.PlatformID,
		TypeID:          a.TypeID,
		ProtocolID:      a.ProtocolID,
		State:           string(view.State),
		IsPrincipal:     a.IsPrincipal,
		IsCurrentOwner:  view.IsCurrentOwner,
		ConfiguredBy:    uuidString(a.ConfiguredBy),
		Notes:           a.Notes,
		PreviousOwnerID: uuidString(a.PreviousOwnerID),
		ReassignedAt:    a.ReassignedAt,
		AliasOf:         uuidString(a.AliasOf),
		Version:         a.Version,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.Credentials != nil {
		out.Credentials = &accountv1.CredentialsInfo{
			Login:     a.Credentials.Login,
			HasSecret: a.Credentials.Secret != "",
		}
	}
	return out
}

// ownerView renders an account as its current owner sees it.
func ownerView(a *models.EmailAccount) *accountv1.Account {
	if a == nil {
		return nil
	}
	return accountToAPI(models.ViewFor(a, a.UserID))
}

func eventToAPI(e *models.OwnershipEvent) *accountv1.Event {
	if e == nil {
		return nil
	}
	out := &accountv1.Event{
		EventID:             e.EventID.String(),
		Seq:                 e.Seq,
		AccountID:           e.AccountID.String(),
		Kind:                string(e.Kind),
		Timestamp:           e.Timestamp,
		ActorID:             e.ActorID.String(),
		ActorName:           e.ActorName,
		OwnerID:             e.OwnerID.String(),
		Reason:              e.Reason,
		Notes:               e.Notes,
		Provenance:          e.Provenance,
		CorrelationID:       e.CorrelationID,
		DestinationUserID:   uuidString(e.DestinationUserID),
		DestinationUserName: e.DestinationUserName,
		OriginUserID:        uuidString(e.OriginUserID),
		OriginUserName:      e.OriginUserName,
		WasPrincipal:        e.WasPrincipal,
	}
	for _, c := range e.Changes {
		out.Changes = append(out.Changes, accountv1.FieldChange{Field: c.Field, Before: c.Before, After: c.After})
	}
	return out
}

func userToAPI(u *models.User) *accountv1.User {
	return &accountv1.User{
		UserID:    u.UserID.String(),
		CompanyID: u.CompanyID.String(),
		Name:      u.Name,
		Email:     u.Email,
	}
}

func credentialsFromAPI(c *accountv1.Credentials) *lifecycle.CredentialsInput {
	if c == nil {
		return nil
	}
	return &lifecycle.CredentialsInput{Login: c.Login, Secret: c.Secret}
}

func configFromAPI(c accountv1.AccountConfig) lifecycle.AccountConfig {
	return lifecycle.AccountConfig{
		PlatformID:  c.PlatformID,
		TypeID:      c.TypeID,
		ProtocolID:  c.ProtocolID,
		State:       models.AccountState(c.State),
		Credentials: credentialsFromAPI(c.Credentials),
		Notes:       c.Notes,
		Address:     c.Address,
	}
}

func patchFromAPI(p accountv1.AccountPatch) lifecycle.AccountPatch {
	return lifecycle.AccountPatch{
		Address:         p.Address,
		PlatformID:      p.PlatformID,
		TypeID:          p.TypeID,
		ProtocolID:      p.ProtocolID,
		Credentials:     credentialsFromAPI(p.Credentials),
		Notes:           p.Notes,
		IsPrincipal:     p.IsPrincipal,
		ExpectedVersion: p.ExpectedVersion,
	}
}

func reassignOptionsFromAPI(o accountv1.ReassignOptions) lifecycle.ReassignOptions {
	return lifecycle.ReassignOptions{
		NameForNewOwner:    o.NameForNewOwner,
		KeepAddress:        o.KeepAddress,
		NewAddress:         o.NewAddress,
		Pass:               lifecycle.Pass(o.Pass),
		KeepAliasForOrigin: o.KeepAliasForOrigin,
		Provenance:         o.Provenance,
	}
}
