package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindUnavailable   Kind = "backend_unavailable"
	KindCapture       Kind = "capture_failed"
	KindNetwork       Kind = "network_failed"
	KindClarification Kind = "clarification"
)

// Error carries a message that is safe to show (and speak) to the user.
// Cause keeps the underlying failure for logs and errors.Is.
type Error struct {
	Kind        Kind
	SafeMessage string
	Cause       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return defaultMessage(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindUnavailable:
		return "This feature is not available."
	case KindCapture:
		return "Capture failed."
	case KindNetwork:
		return "Network request failed."
	case KindClarification:
		return "Could you say that again?"
	default:
		return "Something went wrong."
	}
}

func New(kind Kind, msg string, cause error) error {
	return &Error{
		Kind:        kind,
		SafeMessage: strings.TrimSpace(msg),
		Cause:       cause,
	}
}

func Unavailable(msg string) error {
	return New(KindUnavailable, msg, nil)
}

func Clarification(msg string) error {
	return New(KindClarification, msg, nil)
}

// CaptureFailed appends the cause to prefix unless prefix already ends
// with a period.
func CaptureFailed(prefix string, cause error) error {
	return New(KindCapture, withCause(prefix, cause), cause)
}

func NetworkFailed(prefix string, cause error) error {
	return New(KindNetwork, withCause(prefix, cause), cause)
}

func withCause(prefix string, cause error) string {
	if cause == nil || strings.HasSuffix(prefix, ".") {
		return prefix
	}
	return fmt.Sprintf("%s: %v", prefix, cause)
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// PublicMessage renders any error as the string returned to the user.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
