package broker

import (
	"errors"
	"fmt"
)

// ErrBrokerUnavailable is returned after every retry attempt has been
// exhausted on a transient failure.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// ErrNotConnected is used internally by clients whose connection guard
// trips; callers normally see an empty result instead.
var ErrNotConnected = errors.New("broker not connected")

// Error classifies a broker failure as retryable (rate limit, transient
// network) or fatal (auth, permission, validation). Fatal errors are never
// retried so failure latency stays low and the log stays actionable.
type Error struct {
	Op        string // "submit order", "fetch trades", ...
	Code      string // broker-specific code if known
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("broker %s (code %s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// RateLimited wraps a rate-limit or transient network failure.
func RateLimited(op, code string, err error) *Error {
	return &Error{Op: op, Code: code, Retryable: true, Err: err}
}

// Fatal wraps an authentication/permission/validation failure.
func Fatal(op, code string, err error) *Error {
	return &Error{Op: op, Code: code, Retryable: false, Err: err}
}

// IsRetryable reports whether err should be retried with backoff.
// Unclassified errors are treated as retryable network noise.
func IsRetryable(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Retryable
	}
	return true
}

// IsFatal reports whether err is a classified non-retryable failure.
func IsFatal(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return !be.Retryable
	}
	return false
}
