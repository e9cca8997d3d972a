package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAuthExpired is returned when a credential refresh was rejected by the
// server. It is terminal for the session: the credential store has already
// been cleared when this error is observed.
var ErrAuthExpired = errors.New("session expired: credential refresh rejected")

// ErrNotFound marks a comment or thread the server does not know about.
var ErrNotFound = errors.New("not found")

// ConnectivityError wraps a transport-level failure where no response reached
// the client. Distinct from server error statuses so callers can present it
// as retryable.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity failure during %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err is (or wraps) a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// ValidationError carries structured field-level errors from a rejected
// write. Surfaced per-field to the originating form; not fatal.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msgs := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(msgs, "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// StatusError is a non-2xx response the client does not resolve locally.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}
