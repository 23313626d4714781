package interceptors

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/common"
)

type ping struct{}

var secret = []byte("test-secret")

func signed(t *testing.T, claims common.Claims, key []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func okHandler(seen *context.Context) connect.UnaryFunc {
	return func(ctx context.Context, _ connect.AnyRequest) (connect.AnyResponse, error) {
		if seen != nil {
			*seen = ctx
		}
		return connect.NewResponse(&ping{}), nil
	}
}

func TestAuthInterceptor(t *testing.T) {
	valid := signed(t, common.Claims{
		UserID:           "0b6f0c6e-7d3a-4b43-9a53-6a3a5b8e0f11",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}, secret)
	expired := signed(t, common.Claims{
		UserID:           "0b6f0c6e-7d3a-4b43-9a53-6a3a5b8e0f11",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
	}, secret)
	forged := signed(t, common.Claims{UserID: "someone"}, []byte("other"))

	tests := []struct {
		name   string
		header string
		wantOK bool
	}{
		{"valid token", "Bearer " + valid, true},
		{"missing header", "", false},
		{"wrong scheme", "Basic " + valid, false},
		{"expired", "Bearer " + expired, false},
		{"wrong key", "Bearer " + forged, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen context.Context
			call := NewAuthInterceptor(secret).WrapUnary(okHandler(&seen))

			req := connect.NewRequest(&ping{})
			if tt.header != "" {
				req.Header().Set("Authorization", tt.header)
			}
			_, err := call(context.Background(), req)
			if !tt.wantOK {
				require.Error(t, err)
				assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
				return
			}
			require.NoError(t, err)
			userID, ok := GetUserIDFromContext(seen)
			assert.True(t, ok)
			assert.Equal(t, "0b6f0c6e-7d3a-4b43-9a53-6a3a5b8e0f11", userID)
		})
	}
}

func TestAuthInterceptor_EmptySecretRejects(t *testing.T) {
	token := signed(t, common.Claims{UserID: "u"}, secret)
	call := NewAuthInterceptor(nil).WrapUnary(okHandler(nil))

	req := connect.NewRequest(&ping{})
	req.Header().Set("Authorization", "Bearer "+token)
	_, err := call(context.Background(), req)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}

func TestRequestIDInterceptor(t *testing.T) {
	var seen context.Context
	call := NewRequestIDInterceptor("X-Request-ID").WrapUnary(okHandler(&seen))

	req := connect.NewRequest(&ping{})
	req.Header().Set("X-Request-ID", "abc")
	resp, err := call(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "abc", GetRequestID(seen))
	assert.Equal(t, "abc", resp.Header().Get("X-Request-ID"))

	resp, err = call(context.Background(), connect.NewRequest(&ping{}))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header().Get("X-Request-ID"))
}

func TestRecoveryInterceptor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	call := NewRecoveryInterceptor(logger).WrapUnary(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		panic("boom")
	})

	resp, err := call(context.Background(), connect.NewRequest(&ping{}))
	assert.Nil(t, resp)
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))
}

func TestRateLimitInterceptor(t *testing.T) {
	call := NewRateLimitInterceptor(rate.NewLimiter(rate.Every(time.Hour), 1)).WrapUnary(okHandler(nil))

	_, err := call(context.Background(), connect.NewRequest(&ping{}))
	require.NoError(t, err)
	_, err = call(context.Background(), connect.NewRequest(&ping{}))
	assert.Equal(t, connect.CodeResourceExhausted, connect.CodeOf(err))
}

func TestSplitProcedure(t *testing.T) {
	service, method := splitProcedure("/wealth.staging.v1.StagingService/PreviewImport")
	assert.Equal(t, "wealth.staging.v1.StagingService", service)
	assert.Equal(t, "PreviewImport", method)

	service, method = splitProcedure("")
	assert.Empty(t, service)
	assert.Empty(t, method)
}

func TestTracingInterceptor_PassesThrough(t *testing.T) {
	call := NewTracingInterceptor(nil).WrapUnary(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, errors.New("boom")
	})

	_, err := call(context.Background(), connect.NewRequest(&ping{}))
	assert.EqualError(t, err, "boom")
}
