package interceptors

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"

	"connectrpc.com/connect"
)

// NewRecoveryInterceptor turns handler panics into internal errors.
func NewRecoveryInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (resp connect.AnyResponse, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "panic in handler",
						slog.String("procedure", req.Spec().Procedure),
						slog.String("request_id", GetRequestID(ctx)),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
					resp = nil
					err = connect.NewError(connect.CodeInternal, errors.New("internal error"))
				}
			}()
			return next(ctx, req)
		}
	}
}
