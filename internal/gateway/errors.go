package gateway

import (
	"errors"
	"net/http"
)

const (
	// FallbackMessage is shown when neither the body nor the status line
	// says what went wrong.
	FallbackMessage = "Something went wrong! Try again!"
	// DecodeMessage is shown when a response does not have the expected shape.
	DecodeMessage = "Unexpected response format"
)

// Kind classifies a failed call.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindStatus
	KindDecode
	KindCanceled
	KindRequest
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindCanceled:
		return "canceled"
	case KindRequest:
		return "request"
	}
	return "unknown"
}

// Error is the only error type Do and Call return. Error() is the message
// meant for the user; the cause, if any, is reachable through Unwrap.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a gateway error of kind k.
func IsKind(err error, k Kind) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == k
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Status
	}
	return 0
}

// IsUnauthorized reports whether the server rejected the credential.
func IsUnauthorized(err error) bool {
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

func decodeError(status int, err error) *Error {
	return &Error{Kind: KindDecode, Status: status, Message: DecodeMessage, Err: err}
}
