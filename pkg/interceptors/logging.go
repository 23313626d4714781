package interceptors

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// NewLoggingInterceptor logs every unary call with its outcome and latency.
func NewLoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{
				slog.String("procedure", req.Spec().Procedure),
				slog.String("request_id", GetRequestID(ctx)),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				code := connect.CodeOf(err)
				attrs = append(attrs, slog.String("code", code.String()), slog.Any("error", err))
				if code == connect.CodeInternal || code == connect.CodeUnknown || code == connect.CodeUnavailable {
					logger.ErrorContext(ctx, "rpc failed", attrs...)
				} else {
					logger.InfoContext(ctx, "rpc rejected", attrs...)
				}
				return resp, err
			}
			logger.InfoContext(ctx, "rpc completed", attrs...)
			return resp, nil
		}
	}
}
