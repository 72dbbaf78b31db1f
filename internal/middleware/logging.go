package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"

	apperrors "github.com/mmynk/kameti/internal/errors"
	"github.com/mmynk/kameti/internal/metrics"
)

// rpcOutcome classifies a finished kameti RPC.
type rpcOutcome struct {
	code       string // connect code, "ok" on success
	kametiCode string // domain code from the error metadata, if any
	level      slog.Level
	message    string
}

// classify maps an RPC error to its log level. Domain rejections such as an
// unfunded round log at info, auth failures at warn, server failures at error.
func classify(err error) rpcOutcome {
	if err == nil {
		return rpcOutcome{code: "ok", level: slog.LevelInfo}
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return rpcOutcome{code: connect.CodeUnknown.String(), level: slog.LevelError, message: err.Error()}
	}
	out := rpcOutcome{
		code:       connectErr.Code().String(),
		kametiCode: connectErr.Meta().Get(apperrors.ErrorCodeHeader),
		message:    connectErr.Message(),
		level:      slog.LevelInfo,
	}
	switch connectErr.Code() {
	case connect.CodeInternal, connect.CodeUnavailable, connect.CodeUnknown, connect.CodeDataLoss:
		out.level = slog.LevelError
	case connect.CodeUnauthenticated, connect.CodePermissionDenied:
		out.level = slog.LevelWarn
	}
	return out
}

// method trims "/kameti.v1.KametiService/ProcessPayout" to "ProcessPayout".
func method(procedure string) string {
	if i := strings.LastIndex(procedure, "/"); i >= 0 {
		return procedure[i+1:]
	}
	return procedure
}

// LoggingInterceptor logs every kameti RPC with the caller, their role and the
// domain error code, and records latency in m. A nil m only logs.
func LoggingInterceptor(m *metrics.Metrics) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			resp, err := next(ctx, req)

			elapsed := time.Since(start)
			out := classify(err)
			attrs := []any{
				"method", method(procedure),
				"user_id", GetUserID(ctx), // empty if auth rejected the call
				"role", string(GetRole(ctx)),
				"duration_ms", elapsed.Milliseconds(),
			}
			msg := "RPC ok"
			if err != nil {
				msg = "RPC rejected"
				attrs = append(attrs, "code", out.code, "error", out.message)
				if out.kametiCode != "" {
					attrs = append(attrs, "kameti_code", out.kametiCode)
				}
			}
			slog.Log(ctx, out.level, msg, attrs...)
			m.ObserveRPC(procedure, out.code, elapsed.Seconds())

			return resp, err
		}
	}
}
