package server

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/casekeeper/internal/apperr"
)

var kindCodes = map[apperr.Kind]connect.Code{
	apperr.KindUnauthenticated:    connect.CodeUnauthenticated,
	apperr.KindUnauthorized:       connect.CodePermissionDenied,
	apperr.KindNotFound:           connect.CodeNotFound,
	apperr.KindValidation:         connect.CodeInvalidArgument,
	apperr.KindConflict:           connect.CodeAlreadyExists,
	apperr.KindInvariantViolation: connect.CodeFailedPrecondition,
	apperr.KindNoEligibleWorkers:  connect.CodeResourceExhausted,
}

// CodeOf returns the connect code an engine error is reported with.
func CodeOf(err error) connect.Code {
	if code, ok := kindCodes[apperr.KindOf(err)]; ok {
		return code
	}
	return connect.CodeInternal
}

// toConnectError converts an engine error into a connect error carrying only the safe message.
// The full chain of internal errors is logged and never sent to the caller.
func toConnectError(ctx context.Context, err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	code := CodeOf(err)
	if code == connect.CodeInternal {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Internal error")
	}
	return connect.NewError(code, errors.New(apperr.SafeMessage(err)))
}

// KindOfCode maps a connect code back to an engine error kind, for clients.
func KindOfCode(code connect.Code) apperr.Kind {
	for kind, c := range kindCodes {
		if c == code {
			return kind
		}
	}
	return apperr.KindInternal
}
