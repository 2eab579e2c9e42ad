package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies the outcome of a server function call for the wire contract.
type Kind int

const (
	KindOK Kind = iota
	KindNotFound
	KindMethodNotAllowed
	KindBadRequest
	KindApplication
	KindUnauthorized
	KindForbidden
	KindInternal
	KindCancelled
	KindTimeout
	KindTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNotFound:
		return "not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindBadRequest:
		return "bad_request"
	case KindApplication:
		return "application"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindInternal:
		return "internal"
	case KindCancelled:
		return "cancelled"
	case KindTimeout:
		return "timeout"
	case KindTooLarge:
		return "payload_too_large"
	default:
		return "unknown"
	}
}

// Status is the HTTP status paired with the kind.
func (k Kind) Status() int {
	switch k {
	case KindOK:
		return http.StatusOK
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindBadRequest:
		return http.StatusBadRequest
	case KindApplication:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindCancelled:
		return StatusClientClosed
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// StatusClientClosed is reported for calls abandoned by the client.
const StatusClientClosed = 499

var (
	ErrDuplicatePath    = errors.New("server function path already registered")
	ErrSealed           = errors.New("function registry is sealed")
	ErrNotFound         = errors.New("server function not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrInternal         = errors.New("internal error")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrBodyTooLarge     = errors.New("request body too large")
)

// AppError is returned by a handler to signal a domain failure. It reaches the
// caller as structured data rather than as a transport fault.
type AppError struct {
	Code    string
	Message string
	Data    any
	// Status overrides the default 422 when set.
	Status int
}

// PublicMessage is the text a streamed resource rejection may show the client.
func (e *AppError) PublicMessage() string { return e.Error() }

func (e *AppError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Errorf builds an AppError with a formatted message.
func Errorf(code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// EncodeError wraps an output encoding failure. It always maps to KindInternal.
type EncodeError struct {
	Codec string
	Err   error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("%s encode: %v", e.Codec, e.Err) }
func (e *EncodeError) Unwrap() error { return e.Err }

// InputError marks a call whose arguments could not be decoded or
// transformed. Only this reaches the caller as a bad request; a codec failure
// inside the handler body stays internal.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }
func (e *InputError) Unwrap() error { return e.Err }

// PanicError records a recovered handler panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("handler panic: %v", e.Value) }

// Classify maps an error returned from the call path to its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOK
	}
	var ie *InputError
	var ae *AppError
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrMethodNotAllowed):
		return KindMethodNotAllowed
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrBodyTooLarge):
		return KindTooLarge
	case errors.As(err, &ie):
		return KindBadRequest
	case errors.As(err, &ae):
		return KindApplication
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindInternal
	}
}

// ErrorBody is the JSON envelope of every failed call.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}
