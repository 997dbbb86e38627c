package hue

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of a bridge operation.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnection
	KindValidation
	KindBridge
	KindTimeout
	KindRateLimit
)

// String returns the classification name exposed to callers as "error_type".
func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "ConnectionError"
	case KindValidation:
		return "ValidationError"
	case KindBridge:
		return "BridgeError"
	case KindTimeout:
		return "TimeoutError"
	case KindRateLimit:
		return "RateLimitError"
	default:
		return "UnknownError"
	}
}

// kindError is the sentinel form of a Kind, usable as an errors.Is target.
type kindError Kind

func (k kindError) Error() string {
	return Kind(k).String()
}

// Sentinels for errors.Is. Any *Error of the matching kind is Is-equal to them.
var (
	ErrConnection error = kindError(KindConnection)
	ErrValidation error = kindError(KindValidation)
	ErrBridge     error = kindError(KindBridge)
	ErrTimeout    error = kindError(KindTimeout)
	ErrRateLimit  error = kindError(KindRateLimit)
)

// Hue v1 bridge error types that matter for classification.
const (
	bridgeErrUnauthorized        = 1
	bridgeErrResourceUnavailable = 3
	bridgeErrInternal            = 901
)

// Error is the single error type produced by the bridge client.
type Error struct {
	Kind    Kind
	Op      string // e.g. "PUT lights/3/state"
	Message string

	StatusCode int // HTTP status, 0 for transport failures
	BridgeType int // bridge-reported error type, 0 if none

	// Retryable reports whether the executor may try the call again.
	Retryable bool

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindError)
	return ok && Kind(k) == e.Kind
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindUnknown
}

// ErrorType returns the kind name of err, falling back to "UnexpectedError"
// for errors that did not come from this package.
func ErrorType(err error) string {
	if k := KindOf(err); k != KindUnknown {
		return k.String()
	}
	return "UnexpectedError"
}

func validationErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// bridgeError classifies an error object reported inside a 200 response.
func bridgeError(op string, typ int, address, description string) *Error {
	e := &Error{
		Op:         op,
		BridgeType: typ,
		Message:    fmt.Sprintf("bridge error %d at %s: %s", typ, address, description),
	}
	switch typ {
	case bridgeErrUnauthorized:
		e.Kind = KindConnection
		e.Message = "authentication failed: " + description
	case bridgeErrResourceUnavailable:
		e.Kind = KindValidation
		e.Message = "resource not found: " + description
	case bridgeErrInternal:
		e.Kind = KindBridge
		e.Retryable = true
	default:
		e.Kind = KindBridge
	}
	return e
}
