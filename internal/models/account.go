package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountState is the lifecycle state of an email account.
type AccountState string

const (
	AccountStatePending    AccountState = "pending"
	AccountStateActive     AccountState = "active"
	AccountStateInactive   AccountState = "inactive"
	AccountStateReassigned AccountState = "reassigned" // view-only, rendered to prior owners
	AccountStateAlias      AccountState = "alias"
)

// Valid reports whether s is one of the known states.
func (s AccountState) Valid() bool {
	switch s {
	case AccountStatePending, AccountStateActive, AccountStateInactive, AccountStateReassigned, AccountStateAlias:
		return true
	}
	return false
}

// Live reports whether an account in this state is in day to day use by its owner.
func (s AccountState) Live() bool {
	return s == AccountStateActive || s == AccountStateAlias
}

// Credentials is the login/secret pair for an email account.
// Secret holds the sealed value as stored, never the plaintext.
type Credentials struct {
	Login  string
	Secret string
}

// EmailAccount is a single email account record. It survives reassignment as one record;
// UserID always names the current owner.
type EmailAccount struct {
	AccountID   uuid.UUID // UUIDv7
	UserID      uuid.UUID // current owner
	CompanyID   uuid.UUID
	Address     string
	PlatformID  string
	TypeID      string
	ProtocolID  string
	State       AccountState
	IsPrincipal bool

	Credentials  *Credentials
	ConfiguredBy *uuid.UUID
	Notes        string

	// Set once the account has been reassigned at least once.
	PreviousOwnerID *uuid.UUID
	ReassignedAt    *time.Time

	// AliasOf is set on placeholder records left behind for an origin owner.
	// Placeholders can never be reassigned.
	AliasOf *uuid.UUID

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPlaceholder returns true for alias records kept for a previous owner.
func (a *EmailAccount) IsPlaceholder() bool {
	return a.AliasOf != nil
}

// HasCatalogRefs returns true when platform, type and protocol are all set.
func (a *EmailAccount) HasCatalogRefs() bool {
	return a.PlatformID != "" && a.TypeID != "" && a.ProtocolID != ""
}

// Clone returns a deep copy of the account.
func (a *EmailAccount) Clone() *EmailAccount {
	clone := *a
	if a.Credentials != nil {
		creds := *a.Credentials
		clone.Credentials = &creds
	}
	clone.ConfiguredBy = cloneUUID(a.ConfiguredBy)
	clone.PreviousOwnerID = cloneUUID(a.PreviousOwnerID)
	clone.AliasOf = cloneUUID(a.AliasOf)
	if a.ReassignedAt != nil {
		t := *a.ReassignedAt
		clone.ReassignedAt = &t
	}
	return &clone
}

// NormalizeAddress lower-cases and trims an address for comparisons.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// AccountView is an account projected for one requesting user.
// IsCurrentOwner is computed at read time and never stored.
type AccountView struct {
	Account        *EmailAccount
	ViewerID       uuid.UUID
	IsCurrentOwner bool
	State          AccountState // rendered state, reassigned for prior owners
}

// ViewFor projects an account for viewerID.
func ViewFor(account *EmailAccount, viewerID uuid.UUID) *AccountView {
	view := &AccountView{
		Account:        account,
		ViewerID:       viewerID,
		IsCurrentOwner: account.UserID == viewerID,
		State:          account.State,
	}
	if !view.IsCurrentOwner {
		view.State = AccountStateReassigned
	}
	return view
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
