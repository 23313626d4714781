package interceptors

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"golang.org/x/time/rate"
)

// NewRateLimitInterceptor rejects calls once the shared limiter is drained.
func NewRateLimitInterceptor(limiter *rate.Limiter) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if !limiter.Allow() {
				return nil, connect.NewError(connect.CodeResourceExhausted, errors.New("rate limit exceeded"))
			}
			return next(ctx, req)
		}
	}
}
