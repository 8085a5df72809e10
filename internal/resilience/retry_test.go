package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestDoVal_SuccessAfterTransient(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetry(), func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("busy"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_PermanentErrorStops(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(), func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastRetry()
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour}, func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ShouldRetryOverride(t *testing.T) {
	calls := 0
	cfg := fastRetry()
	cfg.ShouldRetry = func(error) bool { return true }
	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return errors.New("plain")
	})
	assert.Equal(t, 3, calls)
}

func TestBackoff_Capped(t *testing.T) {
	cfg := withDefaults(RetryConfig{InitialBackoff: time.Second, MaxBackoff: 2 * time.Second})
	cfg.JitterFraction = 0
	assert.Equal(t, time.Second, backoff(0, cfg))
	assert.Equal(t, 2*time.Second, backoff(1, cfg))
	assert.Equal(t, 2*time.Second, backoff(5, cfg))
}

func TestPause(t *testing.T) {
	require.NoError(t, Pause(context.Background(), time.Millisecond))
	require.NoError(t, Pause(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Pause(ctx, time.Hour), context.Canceled)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(NewTransientError(errors.New("x"), 429)))
	assert.True(t, IsTransient(errors.New("read tcp: connection reset by peer")))
	assert.True(t, IsTransient(io.ErrUnexpectedEOF))
	assert.False(t, IsTransient(errors.New("invalid api key")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestCheckStatus(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(""))}
	assert.NoError(t, CheckStatus(resp, "svc"))

	resp = &http.Response{StatusCode: 503, Body: io.NopCloser(strings.NewReader("overloaded"))}
	err := CheckStatus(resp, "svc")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "overloaded")

	resp = &http.Response{StatusCode: 401, Body: io.NopCloser(strings.NewReader("no"))}
	err = CheckStatus(resp, "svc")
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "svc: unexpected status 401")
}
