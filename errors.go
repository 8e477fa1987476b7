// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the failure kind of an RFB session operation.
type ErrorCode int

const (
	// ErrProtocolVersionMismatch indicates the server offered a version line
	// other than the single supported one.
	ErrProtocolVersionMismatch ErrorCode = iota
	// ErrSecurityTypeUnsupported indicates the server did not offer the
	// "None" security type.
	ErrSecurityTypeUnsupported
	// ErrAuthenticationFailed indicates a nonzero SecurityResult.
	ErrAuthenticationFailed
	// ErrShortRead indicates the transport delivered fewer bytes than a
	// message requires, including closure mid-message.
	ErrShortRead
	// ErrUnexpectedMessageType indicates a server message other than the
	// one the session was waiting for.
	ErrUnexpectedMessageType
	// ErrUnsupportedEncoding indicates a rectangle encoding with no decoder.
	ErrUnsupportedEncoding
	// ErrRectangleCountMismatch is warning-level only and never returned
	// as the error of an operation.
	ErrRectangleCountMismatch
	// ErrNetwork indicates a transport write failure.
	ErrNetwork
	// ErrTimeout indicates a read or write was cancelled or hit a deadline.
	ErrTimeout
	// ErrValidation indicates a decoded value is outside protocol limits.
	ErrValidation
	// ErrInvalidState indicates an operation was called out of order or on
	// a session that already failed.
	ErrInvalidState
	// ErrConcurrentUse indicates a call overlapped another call on the
	// same session.
	ErrConcurrentUse
)

// String returns the string representation of the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrProtocolVersionMismatch:
		return "protocol version mismatch"
	case ErrSecurityTypeUnsupported:
		return "security type unsupported"
	case ErrAuthenticationFailed:
		return "authentication failed"
	case ErrShortRead:
		return "short read"
	case ErrUnexpectedMessageType:
		return "unexpected message type"
	case ErrUnsupportedEncoding:
		return "unsupported encoding"
	case ErrRectangleCountMismatch:
		return "rectangle count mismatch"
	case ErrNetwork:
		return "network"
	case ErrTimeout:
		return "timeout"
	case ErrValidation:
		return "validation"
	case ErrInvalidState:
		return "invalid state"
	case ErrConcurrentUse:
		return "concurrent use"
	default:
		return "unknown"
	}
}

// Error carries the operation, failure kind and cause of an RFB failure.
type Error struct {
	Op      string
	Code    ErrorCode
	Message string
	Err     error
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rfb %s: %s: %s: %v", e.Code.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("rfb %s: %s: %s", e.Code.String(), e.Op, e.Message)
}

// Unwrap returns the underlying error for error chain unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code and operation.
func (e *Error) Is(target error) bool {
	var rfbErr *Error
	if errors.As(target, &rfbErr) {
		return e.Code == rfbErr.Code && e.Op == rfbErr.Op
	}
	return false
}

// NewError creates a new Error with the specified parameters.
func NewError(op string, code ErrorCode, message string, err error) *Error {
	return &Error{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsRFBError reports whether err contains an *Error. When codes are given,
// the outermost *Error must carry one of them.
func IsRFBError(err error, code ...ErrorCode) bool {
	var rfbErr *Error
	if !errors.As(err, &rfbErr) {
		return false
	}

	if len(code) == 0 {
		return true
	}

	for _, c := range code {
		if rfbErr.Code == c {
			return true
		}
	}
	return false
}

// GetErrorCode extracts the code of the outermost *Error in err's chain,
// or -1 when there is none.
func GetErrorCode(err error) ErrorCode {
	var rfbErr *Error
	if errors.As(err, &rfbErr) {
		return rfbErr.Code
	}
	return ErrorCode(-1)
}

func versionMismatchError(op, message string, err error) error {
	return NewError(op, ErrProtocolVersionMismatch, message, err)
}

func securityUnsupportedError(op, message string, err error) error {
	return NewError(op, ErrSecurityTypeUnsupported, message, err)
}

func authenticationError(op, message string, err error) error {
	return NewError(op, ErrAuthenticationFailed, message, err)
}

func shortReadError(op, message string, err error) error {
	return NewError(op, ErrShortRead, message, err)
}

func unexpectedMessageError(op, message string, err error) error {
	return NewError(op, ErrUnexpectedMessageType, message, err)
}

func unsupportedEncodingError(op, message string, err error) error {
	return NewError(op, ErrUnsupportedEncoding, message, err)
}

func networkError(op, message string, err error) error {
	return NewError(op, ErrNetwork, message, err)
}

func timeoutError(op, message string, err error) error {
	return NewError(op, ErrTimeout, message, err)
}

func validationError(op, message string, err error) error {
	return NewError(op, ErrValidation, message, err)
}

func stateError(op, message string, err error) error {
	return NewError(op, ErrInvalidState, message, err)
}
