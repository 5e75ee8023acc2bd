package rpcerror

import (
	"errors"
	"fmt"
	"net/http"

	"bitcoindrpc/internal/jsonrpc"
)

// Prefix is prepended to every classified error message
const Prefix = "bitcoin JSON-RPC: "

// Kind classifies a failure
type Kind int

const (
	KindUnknown Kind = iota
	// KindCoercion is a bad argument shape, detected before dispatch
	KindCoercion
	KindAuthRejected
	KindForbidden
	// KindOverloaded is the daemon's work-queue backpressure signal
	KindOverloaded
	KindMalformedResponse
	KindTransport
	// KindRemoteProcedure is a populated error field in a decoded response
	KindRemoteProcedure
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindCoercion:          "coercion",
	KindAuthRejected:      "auth_rejected",
	KindForbidden:         "forbidden",
	KindOverloaded:        "overloaded",
	KindMalformedResponse: "malformed_response",
	KindTransport:         "transport",
	KindRemoteProcedure:   "remote_procedure",
}

// String returns a stable label, also used as a metrics label value
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Fixed messages
const (
	MsgUnauthorized = Prefix + "connection rejected: 401 unauthorized"
	MsgForbidden    = Prefix + "connection rejected: 403 forbidden"
	// WorkQueueExceeded is the literal body the daemon sends with HTTP 500
	WorkQueueExceeded = "Work queue depth exceeded"
	MsgOverloaded     = Prefix + WorkQueueExceeded
)

// CodeOverloaded is attached to overload errors (Too Many Requests)
const CodeOverloaded = http.StatusTooManyRequests

// Error is a classified client error
type Error struct {
	Kind    Kind
	Message string
	// Code is 429 for overload errors and the remote error code for
	// remote procedure errors
	Code int
	// Status is the HTTP status code when a response was received
	Status int
	// Remote is the decoded error object for KindRemoteProcedure
	Remote *jsonrpc.Error
	Err    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrCoercion          = &Error{Kind: KindCoercion}
	ErrAuthRejected      = &Error{Kind: KindAuthRejected}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrOverloaded        = &Error{Kind: KindOverloaded}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
	ErrTransport         = &Error{Kind: KindTransport}
	ErrRemoteProcedure   = &Error{Kind: KindRemoteProcedure}
)

// NewCoercion creates a coercion error
func NewCoercion(msg string) *Error {
	return &Error{Kind: KindCoercion, Message: Prefix + "invalid argument: " + msg}
}

// WrapCoercion creates a coercion error around a cause
func WrapCoercion(msg string, err error) *Error {
	return &Error{
		Kind:    KindCoercion,
		Message: fmt.Sprintf("%sinvalid argument: %s: %v", Prefix, msg, err),
		Err:     err,
	}
}

// AtArgument returns a copy of a coercion error naming the argument position
func AtArgument(err error, method string, index int) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	return &Error{
		Kind:    e.Kind,
		Message: fmt.Sprintf("%s (method %s, argument %d)", e.Message, method, index),
		Err:     e.Err,
	}
}

// NewAuthRejected is the fixed 401 error
func NewAuthRejected() *Error {
	return &Error{Kind: KindAuthRejected, Message: MsgUnauthorized, Status: http.StatusUnauthorized}
}

// NewForbidden is the fixed 403 error
func NewForbidden() *Error {
	return &Error{Kind: KindForbidden, Message: MsgForbidden, Status: http.StatusForbidden}
}

// NewOverloaded is the work queue backpressure error
func NewOverloaded(status int) *Error {
	return &Error{Kind: KindOverloaded, Message: MsgOverloaded, Code: CodeOverloaded, Status: status}
}

// NewMalformedResponse wraps a decode failure
func NewMalformedResponse(status int, err error) *Error {
	return &Error{
		Kind:    KindMalformedResponse,
		Message: fmt.Sprintf("%serror parsing JSON: %v", Prefix, err),
		Status:  status,
		Err:     err,
	}
}

// NewTransport wraps a network or connection failure
func NewTransport(err error) *Error {
	return &Error{
		Kind:    KindTransport,
		Message: fmt.Sprintf("%srequest error: %v", Prefix, err),
		Err:     err,
	}
}

// NewRemoteProcedure surfaces the daemon's own error object verbatim
func NewRemoteProcedure(status int, remote *jsonrpc.Error) *Error {
	return &Error{
		Kind:    KindRemoteProcedure,
		Message: remote.Message,
		Code:    remote.Code,
		Status:  status,
		Remote:  remote,
		Err:     remote,
	}
}

// KindOf returns the kind of a classified error, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether a caller may retry the call with backoff.
// Only overload errors qualify.
func IsRetryable(err error) bool {
	return KindOf(err) == KindOverloaded
}
