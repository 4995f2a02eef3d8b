// Package apierror carries the gateway's error taxonomy and extracts
// user-facing messages from provider error responses.
package apierror

import (
	"errors"
	"fmt"
)

// Kind classifies where in a turn's lifecycle a failure happened.
type Kind string

const (
	// KindSetup covers failures before any HTTP dispatch: missing
	// credentials, unknown provider, missing model descriptor.
	KindSetup Kind = "setup"
	// KindAuth marks a validation probe denied by the provider.
	KindAuth Kind = "auth"
	// KindRequest marks a non-OK HTTP status on the streaming call.
	KindRequest Kind = "request"
	// KindTransport marks network faults and body read failures.
	KindTransport Kind = "transport"
	// KindParse marks malformed SSE or JSON on a stream line.
	KindParse Kind = "parse"
	// KindProviderStream marks an in-band error event from the provider.
	KindProviderStream Kind = "provider_stream"
	// KindCancelled is the distinguished non-error terminal state.
	// It never surfaces as an error message, only as cancelled:true.
	KindCancelled Kind = "cancelled"
)

// Error is a classified gateway failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a classified error with a fixed message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error while keeping it unwrappable.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf reports the classification of err, or empty if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
