package portal

import (
	"errors"
	"fmt"
	"strings"
)

// SessionErrorKind classifies session establishment and recovery failures.
type SessionErrorKind string

const (
	// ErrorKindAuth marks rejected credentials.
	ErrorKindAuth SessionErrorKind = "AUTH"
	// ErrorKindConnectivity marks network or remote-side failures.
	ErrorKindConnectivity SessionErrorKind = "CONNECTIVITY"
)

// SessionError is a batch-scoped portal failure. Any SessionError aborts the
// whole pass; the kind only matters for operator visibility and metrics.
type SessionError struct {
	Kind       SessionErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *SessionError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, fmt.Sprintf("portal session error (%s)", strings.ToLower(string(e.Kind))))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *SessionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsAuthError reports whether an error stems from rejected credentials.
func IsAuthError(err error) bool {
	var sessionErr *SessionError
	return errors.As(err, &sessionErr) && sessionErr.Kind == ErrorKindAuth
}

// ErrorKind extracts the classification from a session error, defaulting to
// connectivity for unclassified failures.
func ErrorKind(err error) SessionErrorKind {
	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		return sessionErr.Kind
	}
	return ErrorKindConnectivity
}
