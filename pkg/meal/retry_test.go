package meal

import (
	"Fasting-Tracker/domain"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", &domain.ValidationError{Field: "calories", Reason: "missing"}, false},
		{"transient provider", &domain.ProviderError{Op: "generate", StatusCode: 503, Transient: true, Err: errors.New("unavailable")}, true},
		{"permanent provider", &domain.ProviderError{Op: "generate", StatusCode: 400, Err: errors.New("bad request")}, false},
		{"wrapped provider", fmt.Errorf("analyze: %w", &domain.ProviderError{Transient: true, Err: errors.New("x")}), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"other", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestRetryPolicy_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := RetryPolicy{MaxAttempts: 3}.Do(context.Background(), func(int) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_RetriesTransientUpToMax(t *testing.T) {
	transient := &domain.ProviderError{Transient: true, Err: errors.New("timeout")}
	var attempts []int
	err := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}.Do(context.Background(), func(attempt int) error {
		attempts = append(attempts, attempt)
		return transient
	})
	assert.Same(t, transient, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestRetryPolicy_NeverRetriesPermanentFailures(t *testing.T) {
	for _, failure := range []error{
		&domain.ValidationError{Reason: "reply contains no JSON object"},
		&domain.ProviderError{StatusCode: 401, Err: errors.New("unauthorized")},
	} {
		calls := 0
		err := DefaultRetryPolicy().Do(context.Background(), func(int) error {
			calls++
			return failure
		})
		assert.Equal(t, failure, err)
		assert.Equal(t, 1, calls)
	}
}

func TestRetryPolicy_CustomRetryable(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 2, Retryable: func(error) bool { return true }}
	_ = policy.Do(context.Background(), func(int) error {
		calls++
		return &domain.ValidationError{Reason: "x"}
	})
	assert.Equal(t, 2, calls)
}

func TestRetryPolicy_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	err := RetryPolicy{MaxAttempts: 5, Backoff: time.Minute}.Do(ctx, func(int) error {
		calls++
		cancel()
		return context.DeadlineExceeded
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetryPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = RetryPolicy{}.Do(context.Background(), func(int) error {
		calls++
		return context.DeadlineExceeded
	})
	assert.Equal(t, 1, calls)
}
