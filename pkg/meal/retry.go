package meal

import (
	"Fasting-Tracker/domain"
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxAttempts = 2
	DefaultBackoff     = 500 * time.Millisecond
	DefaultTimeout     = 30 * time.Second
)

// RetryPolicy decides how often a provider call is attempted. Retryable
// selects which failures qualify; nil means IsTransient.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Retryable   func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
		Retryable:   IsTransient,
	}
}

// IsTransient reports whether err is a provider failure worth retrying.
// Validation failures never are.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, domain.ErrValidationFailure) {
		return false
	}
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return perr.Transient
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Do runs fn until it succeeds, the error is not retryable, attempts run
// out, or ctx is done. fn receives the 1-based attempt number.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts || !retryable(err) {
			return err
		}
		if p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return err
		}
	}
	return err
}
