package logger

import (
	"context"
	"errors"
	"os"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/casekeeper/internal/auth"
)

func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

var _ connect.Interceptor = (*ConnectRequests)(nil)

// ConnectRequests logs one line per RPC with a request-scoped logger carrying the
// procedure and subject_id. Denials log at warn, internal failures at error.
type ConnectRequests struct {
	logger zerolog.Logger
}

func NewConnectRequests(logger zerolog.Logger) *ConnectRequests {
	return &ConnectRequests{logger: logger}
}

func (c *ConnectRequests) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return connect.UnaryFunc(func(
		ctx context.Context,
		req connect.AnyRequest,
	) (connect.AnyResponse, error) {
		started := time.Now()

		fields := c.logger.With().
			Str("procedure", req.Spec().Procedure).
			Str("protocol", req.Peer().Protocol).
			Str("addr", req.Peer().Addr)
		if subject := auth.SubjectFromContext(ctx); subject != "" {
			fields = fields.Str("subject_id", subject)
		}
		ctx = fields.Logger().WithContext(ctx)

		resp, err := next(ctx, req)

		event := zerolog.Ctx(ctx).Info()
		if err != nil {
			event = levelFor(ctx, err).Err(err).Str("code", connect.CodeOf(err).String())
		}
		event.Dur("duration", time.Since(started)).Msg("rpc call")

		return resp, err
	})
}

func levelFor(ctx context.Context, err error) *zerolog.Event {
	log := zerolog.Ctx(ctx)

	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return log.Error()
	}

	switch connectErr.Code() {
	case connect.CodeUnauthenticated, connect.CodePermissionDenied:
		return log.Warn()
	case connect.CodeInternal, connect.CodeUnknown, connect.CodeDataLoss:
		return log.Error()
	default:
		return log.Info()
	}
}

func (c *ConnectRequests) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler logs stream completion. Every procedure is unary today.
func (c *ConnectRequests) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return connect.StreamingHandlerFunc(func(
		ctx context.Context,
		conn connect.StreamingHandlerConn,
	) error {
		started := time.Now()

		ctx = c.logger.With().
			Str("procedure", conn.Spec().Procedure).
			Str("addr", conn.Peer().Addr).
			Logger().WithContext(ctx)

		err := next(ctx, conn)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("rpc server stream error")
			return err
		}

		zerolog.Ctx(ctx).Info().
			Dur("duration", time.Since(started)).
			Msg("rpc server stream finished")

		return nil
	})
}
