package server

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/lifecycle"
)

// ErrorCodeHeader carries the lifecycle error code of a rejected operation, for example
// AlreadyInactive, so clients can branch on it without parsing messages.
const ErrorCodeHeader = "Mailroster-Error-Code"

var classCodes = map[lifecycle.Class]connect.Code{
	lifecycle.ClassValidation:          connect.CodeInvalidArgument,
	lifecycle.ClassStateConflict:       connect.CodeFailedPrecondition,
	lifecycle.ClassPolicyViolation:     connect.CodePermissionDenied,
	lifecycle.ClassConcurrencyConflict: connect.CodeAborted,
	lifecycle.ClassNotFound:            connect.CodeNotFound,
}

// toConnectError maps engine errors onto Connect codes.
func toConnectError(op string, err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	var lerr *lifecycle.Error
	if errors.As(err, &lerr) {
		code, ok := classCodes[lerr.Class]
		if !ok {
			code = connect.CodeUnknown
		}
		cerr := connect.NewError(code, lerr)
		cerr.Meta().Set(ErrorCodeHeader, lerr.Code)
		return cerr
	}

	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	log.Error().Err(err).Str("op", op).Msg("Operation failed")
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}

// LifecycleCode returns the lifecycle error code carried by a Connect error, if any.
func LifecycleCode(err error) string {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return ""
	}
	return connectErr.Meta().Get(ErrorCodeHeader)
}
