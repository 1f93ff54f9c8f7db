package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// TransientError is a failure expected to clear on retry: timeouts,
// unavailable services, rate limits and connection problems.
type TransientError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: transient error: %s", e.Provider, e.Message)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RefusalError means the service answered but declined to produce output.
type RefusalError struct {
	Provider string
	Message  string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("%s: refused: %s", e.Provider, e.Message)
}

// IsTransient reports whether err carries a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsRefusal reports whether err carries a *RefusalError.
func IsRefusal(err error) bool {
	var re *RefusalError
	return errors.As(err, &re)
}

// classifyTransport wraps a transport-level failure. Deadline and network
// errors become transient; cancellation of the caller's context is returned
// unchanged so it is not mistaken for a service problem.
func classifyTransport(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	msg := err.Error()
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timed out"
	case errors.As(err, &netErr) && netErr.Timeout():
		msg = "request timed out"
	}
	return &TransientError{Provider: provider, Message: msg, Err: err}
}

// classifyStatus turns a non-2xx HTTP response into an error. Every status
// is retryable: a misconfigured model or a bad gateway are indistinguishable
// from outages at this level, and the retry ceiling bounds the cost.
func classifyStatus(provider string, status int, message string, header http.Header) error {
	if message == "" {
		message = http.StatusText(status)
	}
	e := &TransientError{Provider: provider, StatusCode: status, Message: message}
	if status == http.StatusTooManyRequests && header != nil {
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	}
	return e
}

// parseRetryAfter parses a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
