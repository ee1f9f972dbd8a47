package request

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrTransient marks a failure worth retrying. Fetch functions wrap
	// connectivity-level errors with it (errors.Join or %w) when the
	// transport cannot classify them itself.
	ErrTransient = errors.New("request: transient failure")

	// ErrValueType reports a shared or cached result that cannot be
	// represented as the caller's requested type.
	ErrValueType = errors.New("request: value has unexpected type")
)

// StatusError is a non-2xx response from a collaborator. The retry
// predicate treats 429, 502, 503, and 504 as transient; every other status
// is terminal.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("request: upstream responded %s", e.Status)
	}
	return fmt.Sprintf("request: upstream responded %d", e.Code)
}

// Retryable reports whether err is worth another attempt: explicitly
// transient errors, network-level failures including transport-enforced
// timeouts, rate limiting, and upstream 502/503/504. Caller cancellation
// and everything else (other 4xx/5xx, parse errors) are terminal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	// Bare context sentinels are caller cancellation, matched by identity
	// rather than errors.Is: since go1.23 the http client's own timeout
	// error also satisfies errors.Is(err, context.DeadlineExceeded), and
	// that one is a transport failure, not a caller abort.
	if err == context.Canceled || err == context.DeadlineExceeded {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	// Timeouts retry before the wrapped-sentinel check so client-enforced
	// deadlines reach this branch. A caller's own expired context still
	// stops the loop before the next attempt.
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.As(err, &ne)
}
