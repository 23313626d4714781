package interceptors

import (
	"context"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

type requestIDKey struct{}

// NewRequestIDInterceptor propagates the caller's request id from header,
// or mints one, and echoes it on the response.
func NewRequestIDInterceptor(header string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			id := req.Header().Get(header)
			if id == "" {
				id = uuid.NewString()
			}
			ctx = context.WithValue(ctx, requestIDKey{}, id)

			resp, err := next(ctx, req)
			if resp != nil {
				resp.Header().Set(header, id)
			}
			return resp, err
		}
	}
}

// GetRequestID returns the request id set by the request-id interceptor.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
