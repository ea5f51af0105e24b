package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apresai/callcoach/internal/apperr"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 1 * time.Second
	backoffMult           = 2
	maxBackoff            = 10 * time.Second
)

// retrier runs a provider call with exponential backoff. Only errors marked
// retryable are attempted again.
type retrier struct {
	service  string
	attempts int
	backoff  time.Duration
}

func newRetrier(service string, attempts int) retrier {
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return retrier{service: service, attempts: attempts, backoff: defaultInitialBackoff}
}

// retryableError marks a failure worth another attempt (429, 5xx, transport).
type retryableError struct {
	status int
	err    error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryable(status int, err error) error {
	return &retryableError{status: status, err: err}
}

// statusError is a terminal non-2xx answer.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func isRetryableStatus(status int) bool {
	return status == 429 || status >= 500
}

func (r retrier) do(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	backoff := r.backoff

	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", apperr.NewServiceError(r.service, 0, err)
		}

		text, err := fn(ctx)
		if err == nil {
			if text == "" {
				return "", apperr.Malformed("completion", fmt.Sprintf("empty response from %s", r.service), "")
			}
			return text, nil
		}

		var re *retryableError
		if !errors.As(err, &re) {
			return "", r.wrap(err)
		}
		lastErr = fmt.Errorf("attempt %d/%d: %w", attempt, r.attempts, err)

		if attempt < r.attempts {
			select {
			case <-ctx.Done():
				return "", apperr.NewServiceError(r.service, 0, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= backoffMult
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return "", r.wrap(lastErr)
}

func (r retrier) wrap(err error) error {
	var se *apperr.ServiceError
	var me *apperr.MalformedOutputError
	if errors.As(err, &se) || errors.As(err, &me) {
		return err
	}
	status := 0
	var re *retryableError
	var st *statusError
	switch {
	case errors.As(err, &re):
		status = re.status
	case errors.As(err, &st):
		status = st.status
	}
	return apperr.NewServiceError(r.service, status, err)
}
