package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies what an ownership event records.
type EventKind string

const (
	EventCreation          EventKind = "creation"
	EventConfiguration     EventKind = "configuration"
	EventEdit              EventKind = "edit"
	EventDeactivation      EventKind = "deactivation"
	EventReassignmentOut   EventKind = "reassignment_out"
	EventReassignmentIn    EventKind = "reassignment_in"
	EventMarkedPrincipal   EventKind = "marked_principal"
	EventUnmarkedPrincipal EventKind = "unmarked_principal"
)

// FieldChange is one entry of an edit's before/after summary.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// OwnershipEvent is an append-only ledger entry. Events are never mutated or deleted.
type OwnershipEvent struct {
	EventID   uuid.UUID // UUIDv7
	Seq       int64     // assigned by the ledger on append, strictly increasing
	AccountID uuid.UUID
	Kind      EventKind
	Timestamp time.Time
	ActorID   uuid.UUID
	ActorName string

	// OwnerID is the user from whose side the event is recorded.
	OwnerID uuid.UUID

	Reason     string
	Notes      string
	Provenance string // originating support ticket, if any

	// Reassignment pairs share a correlation id.
	CorrelationID       string
	DestinationUserID   *uuid.UUID
	DestinationUserName string
	OriginUserID        *uuid.UUID
	OriginUserName      string
	WasPrincipal        bool

	Changes []FieldChange
}

// Clone returns a deep copy of the event.
func (e *OwnershipEvent) Clone() *OwnershipEvent {
	clone := *e
	clone.DestinationUserID = cloneUUID(e.DestinationUserID)
	clone.OriginUserID = cloneUUID(e.OriginUserID)
	if e.Changes != nil {
		clone.Changes = append([]FieldChange(nil), e.Changes...)
	}
	return &clone
}
