package types

import "errors"

// Failure taxonomy surfaced to callers. Each class is distinguishable via
// errors.Is so upstream components can react differently: a rate-limit
// signal pauses polling, a single timeout is just retried.
var (
	ErrNetwork          = errors.New("network failure")
	ErrTimeout          = errors.New("request timed out")
	ErrRateLimited      = errors.New("rate limited by upstream")
	ErrMalformed        = errors.New("malformed response")
	ErrValidation       = errors.New("invalid price data")
	ErrDuplicateRequest = errors.New("duplicate request in progress")
	ErrCancelled        = errors.New("request cancelled")
)

// Retryable reports whether the scheduler should re-queue a failed request.
// Rate limiting is deliberately not retryable: it is surfaced immediately
// so the caller can back off instead of making things worse.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout)
}
