package lifecycle

import (
	"errors"
	"fmt"
)

// Class groups lifecycle errors by how a caller should react to them.
type Class string

const (
	ClassValidation          Class = "validation"
	ClassStateConflict       Class = "state_conflict"
	ClassPolicyViolation     Class = "policy_violation"
	ClassConcurrencyConflict Class = "concurrency_conflict"
	ClassNotFound            Class = "not_found"
)

// Error is returned by every engine operation that is rejected.
// Only ClassConcurrencyConflict is safe to retry blindly.
type Error struct {
	Class   Class
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code so that wrapped, message-carrying errors match the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Retryable reports whether a blind retry of the operation is safe.
func (e *Error) Retryable() bool {
	return e.Class == ClassConcurrencyConflict
}

// Sentinel errors, one per code. Use errors.Is to test for them.
var (
	ErrReasonRequired          = &Error{Class: ClassValidation, Code: "ReasonRequired"}
	ErrAddressRequired         = &Error{Class: ClassValidation, Code: "AddressRequired"}
	ErrInvalidCatalogReference = &Error{Class: ClassValidation, Code: "InvalidCatalogReference"}
	ErrInvalidState            = &Error{Class: ClassValidation, Code: "InvalidState"}
	ErrDuplicateAddressForUser = &Error{Class: ClassValidation, Code: "DuplicateAddressForUser"}
	ErrSameOwner               = &Error{Class: ClassValidation, Code: "SameOwner"}
	ErrInvalidReassignOptions  = &Error{Class: ClassValidation, Code: "InvalidReassignOptions"}
	ErrCompanyMismatch         = &Error{Class: ClassValidation, Code: "CompanyMismatch"}

	ErrAccountNotEditable = &Error{Class: ClassStateConflict, Code: "AccountNotEditable"}
	ErrAlreadyInactive    = &Error{Class: ClassStateConflict, Code: "AlreadyInactive"}
	ErrAccountNotInactive = &Error{Class: ClassStateConflict, Code: "AccountNotInactive"}
	ErrNotDiscardable     = &Error{Class: ClassStateConflict, Code: "NotDiscardable"}

	ErrReassignmentNotAllowedByPlatform = &Error{Class: ClassPolicyViolation, Code: "ReassignmentNotAllowedByPlatform"}
	ErrCrossCompanyReassignment         = &Error{Class: ClassPolicyViolation, Code: "CrossCompanyReassignment"}
	ErrPlaceholderNotReassignable       = &Error{Class: ClassPolicyViolation, Code: "PlaceholderNotReassignable"}
	ErrInactiveDestination              = &Error{Class: ClassPolicyViolation, Code: "InactiveDestination"}

	ErrConcurrentModification = &Error{Class: ClassConcurrencyConflict, Code: "ConcurrentModification"}

	ErrAccountNotFound = &Error{Class: ClassNotFound, Code: "AccountNotFound"}
	ErrUserNotFound    = &Error{Class: ClassNotFound, Code: "UserNotFound"}
)

// newError derives a message-carrying error from a sentinel.
func newError(sentinel *Error, format string, args ...any) *Error {
	return &Error{
		Class:   sentinel.Class,
		Code:    sentinel.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

// wrapError derives an error from a sentinel that keeps cause in its chain.
func wrapError(sentinel *Error, cause error, format string, args ...any) *Error {
	e := newError(sentinel, format, args...)
	e.Err = cause
	return e
}

// ClassOf returns the class of err, or "" if err is not a lifecycle error.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}
