package request_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/request"
)

func TestRetryable(t *testing.T) {
	t.Parallel()

	t.Run("nil error is not retryable", func(t *testing.T) {
		t.Parallel()
		require.False(t, request.Retryable(nil))
	})

	t.Run("transient errors are retryable even when wrapped", func(t *testing.T) {
		t.Parallel()
		require.True(t, request.Retryable(request.ErrTransient))
		require.True(t, request.Retryable(fmt.Errorf("fetching tiles: %w", request.ErrTransient)))
	})

	t.Run("context cancellation is never retryable", func(t *testing.T) {
		t.Parallel()
		require.False(t, request.Retryable(context.Canceled))
		require.False(t, request.Retryable(context.DeadlineExceeded))
		require.False(t, request.Retryable(fmt.Errorf("aborted: %w", context.Canceled)))
	})

	t.Run("overload and gateway statuses are retryable", func(t *testing.T) {
		t.Parallel()
		for _, code := range []int{429, 502, 503, 504} {
			require.True(t, request.Retryable(&request.StatusError{Code: code}), "code %d", code)
		}
	})

	t.Run("client and server statuses outside the list are permanent", func(t *testing.T) {
		t.Parallel()
		for _, code := range []int{400, 401, 404, 410, 500} {
			require.False(t, request.Retryable(&request.StatusError{Code: code}), "code %d", code)
		}
	})

	t.Run("network errors are retryable", func(t *testing.T) {
		t.Parallel()
		var err error = &net.DNSError{Err: "no such host", Name: "api.example.com", IsNotFound: true}
		require.True(t, request.Retryable(err))
		require.True(t, request.Retryable(fmt.Errorf("geocoding: %w", err)))
	})

	t.Run("plain errors are permanent", func(t *testing.T) {
		t.Parallel()
		require.False(t, request.Retryable(errors.New("malformed payload")))
	})
}

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := request.DefaultRetryConfig()
	require.Equal(t, 3, cfg.MaxAttempts)
	require.Equal(t, 100*time.Millisecond, cfg.InitialDelay)
	require.Equal(t, 5*time.Second, cfg.MaxDelay)
	require.InDelta(t, 2.0, cfg.Factor, 0.001)
	require.InDelta(t, 0.1, cfg.Jitter, 0.001)
}
