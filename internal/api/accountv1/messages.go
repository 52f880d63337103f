// Package accountv1 holds the request and response messages of the account service and
// its Connect bindings. Messages are plain Go structs carried by a JSON codec.
package accountv1

import "time"

// Credentials is a login/secret pair sent by clients. Secrets are write-only.
type Credentials struct {
	Login  string `json:"login"`
	Secret string `json:"secret,omitempty"`
}

// CredentialsInfo describes stored credentials without revealing the secret.
type CredentialsInfo struct {
	Login     string `json:"login"`
	HasSecret bool   `json:"hasSecret"`
}

// Account is an email account as seen by one viewer.
type Account struct {
	AccountID       string           `json:"accountId"`
	UserID          string           `json:"userId"`
	CompanyID       string           `json:"companyId"`
	Address         string           `json:"address"`
	PlatformID      string           `json:"platformId,omitempty"`
	TypeID          string           `json:"typeId,omitempty"`
	ProtocolID      string           `json:"protocolId,omitempty"`
	State           string           `json:"state"`
	IsPrincipal     bool             `json:"isPrincipal"`
	IsCurrentOwner  bool             `json:"isCurrentOwner"`
	Credentials     *CredentialsInfo `json:"credentials,omitempty"`
	ConfiguredBy    string           `json:"configuredBy,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	PreviousOwnerID string           `json:"previousOwnerId,omitempty"`
	ReassignedAt    *time.Time       `json:"reassignedAt,omitempty"`
	AliasOf         string           `json:"aliasOf,omitempty"`
	Version         int64            `json:"version"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// FieldChange is one before/after entry of an edit event.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Event is an ownership ledger entry.
type Event struct {
	EventID             string        `json:"eventId"`
	Seq                 int64         `json:"seq"`
	AccountID           string        `json:"accountId"`
	Kind                string        `json:"kind"`
	Timestamp           time.Time     `json:"timestamp"`
	ActorID             string        `json:"actorId"`
	ActorName           string        `json:"actorName,omitempty"`
	OwnerID             string        `json:"ownerId"`
	Reason              string        `json:"reason,omitempty"`
	Notes               string        `json:"notes,omitempty"`
	Provenance          string        `json:"provenance,omitempty"`
	CorrelationID       string        `json:"correlationId,omitempty"`
	DestinationUserID   string        `json:"destinationUserId,omitempty"`
	DestinationUserName string        `json:"destinationUserName,omitempty"`
	OriginUserID        string        `json:"originUserId,omitempty"`
	OriginUserName      string        `json:"originUserName,omitempty"`
	WasPrincipal        bool          `json:"wasPrincipal,omitempty"`
	Changes             []FieldChange `json:"changes,omitempty"`
}

// User is a reassignment target.
type User struct {
	UserID    string `json:"userId"`
	CompanyID string `json:"companyId"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
}

// AccountConfig configures an account on creation or principal configuration.
type AccountConfig struct {
	PlatformID  string       `json:"platformId" yaml:"platformId"`
	TypeID      string       `json:"typeId" yaml:"typeId"`
	ProtocolID  string       `json:"protocolId" yaml:"protocolId"`
	State       string       `json:"state,omitempty" yaml:"state"`
	Credentials *Credentials `json:"credentials,omitempty" yaml:"credentials"`
	Notes       *string      `json:"notes,omitempty" yaml:"notes"`
	Address     string       `json:"address,omitempty" yaml:"address"`
}

// AccountPatch lists fields to change; absent fields are left alone.
type AccountPatch struct {
	Address         *string      `json:"address,omitempty" yaml:"address"`
	PlatformID      *string      `json:"platformId,omitempty" yaml:"platformId"`
	TypeID          *string      `json:"typeId,omitempty" yaml:"typeId"`
	ProtocolID      *string      `json:"protocolId,omitempty" yaml:"protocolId"`
	Credentials     *Credentials `json:"credentials,omitempty" yaml:"credentials"`
	Notes           *string      `json:"notes,omitempty" yaml:"notes"`
	IsPrincipal     *bool        `json:"isPrincipal,omitempty" yaml:"isPrincipal"`
	ExpectedVersion *int64       `json:"expectedVersion,omitempty" yaml:"expectedVersion"`
}

// ReassignOptions controls a reassignment.
type ReassignOptions struct {
	NameForNewOwner    string `json:"nameForNewOwner,omitempty" yaml:"nameForNewOwner"`
	KeepAddress        bool   `json:"keepAddress" yaml:"keepAddress"`
	NewAddress         string `json:"newAddress,omitempty" yaml:"newAddress"`
	Pass               string `json:"pass,omitempty" yaml:"pass"`
	KeepAliasForOrigin bool   `json:"keepAliasForOrigin,omitempty" yaml:"keepAliasForOrigin"`
	Provenance         string `json:"provenance,omitempty" yaml:"provenance"`
}

type ConfigurePrincipalRequest struct {
	UserID    string        `json:"userId"`
	CompanyID string        `json:"companyId"`
	Config    AccountConfig `json:"config"`
}

type AddAccountRequest struct {
	UserID      string        `json:"userId"`
	CompanyID   string        `json:"companyId"`
	Address     string        `json:"address"`
	Config      AccountConfig `json:"config"`
	AsPrincipal bool          `json:"asPrincipal"`
	Provenance  string        `json:"provenance,omitempty"`
}

type EditAccountRequest struct {
	AccountID    string       `json:"accountId"`
	ActingUserID string       `json:"actingUserId"`
	Patch        AccountPatch `json:"patch"`
	Reason       string       `json:"reason"`
}

type DeactivateRequest struct {
	AccountID    string `json:"accountId"`
	ActingUserID string `json:"actingUserId"`
	Reason       string `json:"reason"`
	Provenance   string `json:"provenance,omitempty"`
}

type ReassignRequest struct {
	AccountID         string          `json:"accountId"`
	ActingUserID      string          `json:"actingUserId"`
	DestinationUserID string          `json:"destinationUserId"`
	Options           ReassignOptions `json:"options"`
	Reason            string          `json:"reason"`
}

type ReassignResponse struct {
	Account     *Account `json:"account"`
	Out         *Event   `json:"out"`
	In          *Event   `json:"in"`
	Placeholder *Account `json:"placeholder,omitempty"`
}

type SeedPendingRequest struct {
	UserID    string `json:"userId"`
	CompanyID string `json:"companyId"`
	Address   string `json:"address"`
}

type DiscardPendingRequest struct {
	AccountID string `json:"accountId"`
}

type DiscardPendingResponse struct{}

// AccountResponse carries a single account. Account is nil when there is none.
type AccountResponse struct {
	Account *Account `json:"account,omitempty"`
}

type ListAccountsRequest struct {
	UserID string `json:"userId"`
}

type ListAccountsResponse struct {
	Accounts []*Account `json:"accounts"`
}

type GetPrincipalRequest struct {
	UserID string `json:"userId"`
}

type GetAccountRequest struct {
	AccountID    string `json:"accountId"`
	ViewerUserID string `json:"viewerUserId"`
}

type GetHistoryRequest struct {
	AccountID string `json:"accountId"`
}

type GetHistoryResponse struct {
	Events []*Event `json:"events"`
}

type ListReassignmentTargetsRequest struct {
	AccountID string `json:"accountId"`
}

type ListReassignmentTargetsResponse struct {
	Users []*User `json:"users"`
}
