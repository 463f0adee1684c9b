package remote

import (
	"errors"
	"fmt"
)

// ErrorKind separates failures that never reached the store from failures
// the store reported.
type ErrorKind string

const (
	// KindTransport covers timeouts, refused connections, and unreadable
	// success bodies.
	KindTransport ErrorKind = "transport"
	// KindApplication covers non-2xx answers and status "error".
	KindApplication ErrorKind = "application"
)

// Error is a classified remote call failure.
type Error struct {
	Kind ErrorKind
	// Message is what the user sees. For application failures it is the
	// store's own message, verbatim.
	Message string
	// StatusCode is the HTTP status of an application failure.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failure: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failure: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// TransportError wraps err as a transport failure.
func TransportError(message string, err error) *Error {
	return &Error{Kind: KindTransport, Message: message, Err: err}
}

// ApplicationError builds an application failure carrying the store's message.
func ApplicationError(statusCode int, message string) *Error {
	return &Error{Kind: KindApplication, Message: message, StatusCode: statusCode}
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindTransport
}

// IsApplication reports whether err is an application failure.
func IsApplication(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindApplication
}
