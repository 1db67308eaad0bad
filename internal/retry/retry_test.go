package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/modelforge/modelforge/internal/errors"
)

func timeoutErr() error {
	return &apperrors.NetworkTimeoutError{Message: "timed out"}
}

type harness struct {
	retrier *Retrier
	sleeps  []time.Duration
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{}
	opts.Sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	retrier, err := New(opts)
	require.NoError(t, err)
	h.retrier = retrier
	return h
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative max retries", Options{MaxRetries: -1, BackoffFactor: 2, MaxWait: time.Minute}},
		{"zero backoff factor", Options{MaxRetries: 3, BackoffFactor: 0, MaxWait: time.Minute}},
		{"negative backoff factor", Options{MaxRetries: 3, BackoffFactor: -1, MaxWait: time.Minute}},
		{"zero max wait", Options{MaxRetries: 3, BackoffFactor: 2, MaxWait: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			assert.Error(t, err, "invalid options must fail at construction, not first use")
		})
	}
}

func TestDoSuccessFirstTry(t *testing.T) {
	h := newHarness(t, Options{MaxRetries: 3, BackoffFactor: 2, MaxWait: time.Minute})

	calls := 0
	err := h.retrier.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, h.sleeps)
}

func TestDoMaxRetriesExhausted(t *testing.T) {
	h := newHarness(t, Options{MaxRetries: 2, BackoffFactor: 2, MaxWait: time.Minute})

	calls := 0
	err := h.retrier.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return timeoutErr()
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "max_retries=2 means 3 total attempts")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, h.sleeps)

	var timeout *apperrors.NetworkTimeoutError
	assert.ErrorAs(t, err, &timeout, "last error propagates unchanged")
}

func TestDoSingleRetry(t *testing.T) {
	h := newHarness(t, Options{MaxRetries: 1, BackoffFactor: 2, MaxWait: time.Minute})

	calls := 0
	err := h.retrier.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return timeoutErr()
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoEventualSuccess(t *testing.T) {
	h := newHarness(t, Options{MaxRetries: 3, BackoffFactor: 2, MaxWait: time.Minute})

	calls := 0
	err := h.retrier.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return timeoutErr()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoNonRetryableImmediate(t *testing.T) {
	h := newHarness(t, Options{MaxRetries: 5, BackoffFactor: 2, MaxWait: time.Minute})

	boom := errors.New("bad credentials")
	calls := 0
	err := h.retrier.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "non-retryable errors consume no budget")
	assert.Empty(t, h.sleeps)
}

func TestDoRetryAfterPrecedence(t *testing.T) {
	h := newHarness(t, Options{MaxRetries: 1, BackoffFactor: 2, MaxWait: time.Minute})

	calls := 0
	err := h.retrier.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &apperrors.RateLimitError{Message: "slow down", RetryAfter: 5 * time.Second}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second}, h.sleeps, "server Retry-After is honored verbatim")
}

func TestDoBackoffCappedAtMaxWait(t *testing.T) {
	h := newHarness(t, Options{MaxRetries: 4, BackoffFactor: 10, MaxWait: 30 * time.Second})

	err := h.retrier.Do(context.Background(), func(ctx context.Context) error {
		return timeoutErr()
	})
	require.Error(t, err)
	// 10^0=1s, 10^1=10s, then the cap.
	assert.Equal(t, []time.Duration{
		time.Second,
		10 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}, h.sleeps)
}

func TestDoZeroRetries(t *testing.T) {
	h := newHarness(t, Options{MaxRetries: 0, BackoffFactor: 2, MaxWait: time.Minute})

	calls := 0
	err := h.retrier.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return timeoutErr()
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, h.sleeps)
}

func TestDoSleepCancellation(t *testing.T) {
	retrier, err := New(Options{
		MaxRetries:    3,
		BackoffFactor: 2,
		MaxWait:       time.Minute,
		Sleep: func(ctx context.Context, d time.Duration) error {
			return context.Canceled
		},
	})
	require.NoError(t, err)

	err = retrier.Do(context.Background(), func(ctx context.Context) error {
		return timeoutErr()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWrap(t *testing.T) {
	h := newHarness(t, Options{MaxRetries: 2, BackoffFactor: 2, MaxWait: time.Minute})

	calls := 0
	wrapped := h.retrier.Wrap(func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return timeoutErr()
		}
		return nil
	})

	require.NoError(t, wrapped(context.Background()))
	assert.Equal(t, 2, calls)
}
