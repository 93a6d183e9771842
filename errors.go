package vpti

import (
	"errors"
	"fmt"
)

// Code categorizes an Error into the taxonomy from the error-handling
// design: protocol errors are rejected inline by the dispatcher, handler
// errors come back from the VP-facing Handler, transport errors are I/O
// failures on a receiver's or client's transport, and resource errors are
// fatal construction-time failures (shm attach, queue setup).
type Code string

const (
	CodeProtocol  Code = "protocol error"
	CodeHandler   Code = "handler error"
	CodeTransport Code = "transport error"
	CodeResource  Code = "resource error"
)

// Error is a structured VPTI error carrying the operation that failed, its
// taxonomy code, and an optional wrapped cause.
type Error struct {
	Op    string // operation that failed, e.g. "dispatch", "mq.Start", "shm.Attach"
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Inner != nil {
		msg = e.Inner.Error()
	}
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("vpti: %s: %s (%s)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("vpti: %s (%s)", msg, e.Code)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is lets errors.Is match Errors by taxonomy Code, mirroring how the target
// would be constructed via NewError/NewProtocolError/etc. with only a Code
// set.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError creates a structured error for op in the given taxonomy category.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewProtocolError reports a malformed request: bad length or shape for its
// command. The dispatcher never invokes the VP handler for these.
func NewProtocolError(op, msg string) *Error {
	return &Error{Op: op, Code: CodeProtocol, Msg: msg}
}

// NewHandlerError wraps a failure reported by the VP-facing Handler.
func NewHandlerError(op string, inner error) *Error {
	return WrapError(op, CodeHandler, inner)
}

// NewTransportError wraps an I/O failure on a receiver's or client's
// transport (MQ or pipe read/write/open).
func NewTransportError(op string, inner error) *Error {
	return WrapError(op, CodeTransport, inner)
}

// NewResourceError wraps a fatal construction-time failure: shared-memory
// attach, event-queue setup, or transport handshake.
func NewResourceError(op string, inner error) *Error {
	return WrapError(op, CodeResource, inner)
}

// WrapError wraps inner under op and code. If inner is already a *Error,
// its code and message are preserved and only Op is updated, so repeated
// wrapping across call boundaries doesn't lose the original category.
func WrapError(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ve, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: ve.Code, Msg: ve.Msg, Inner: ve.Inner}
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is (or wraps) a *Error with the given code.
func IsCode(err error, code Code) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}
