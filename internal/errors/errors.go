package errors

import (
	stderrors "errors"
	"fmt"

	"connectrpc.com/connect"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable diagnostic, safe to show callers
	Metadata map[string]string // Additional context (group id, round, ...)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata creates a domain error carrying metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is comparisons by code.
var (
	ErrNotFound             = New(CodeNotFound, "not found")
	ErrConflict             = New(CodeConflict, "conflict")
	ErrInvalidSelection     = New(CodeInvalidSelection, "invalid selection")
	ErrNoEligibleRecipients = New(CodeNoEligibleRecipients, "no eligible recipients")
	ErrNotSupported         = New(CodeNotSupported, "not supported")
	ErrPolicyViolation      = New(CodePolicyViolation, "policy violation")
	ErrPersistenceFailure   = New(CodePersistenceFailure, "persistence failure")
	ErrPermissionDenied     = New(CodePermissionDenied, "permission denied")
	ErrInvalidArgument      = New(CodeInvalidArgument, "invalid argument")
)

// CodeOf extracts the domain code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeUnknown
}

// ErrorCodeHeader carries the domain Code on connect errors.
const ErrorCodeHeader = "X-Kameti-Error-Code"

// ToConnect converts err into a connect error. Domain errors keep their
// message; anything else is reported as internal.
func ToConnect(err error) *connect.Error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if stderrors.As(err, &connectErr) {
		return connectErr
	}
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		cerr := connect.NewError(domainErr.Code.ConnectCode(), stderrors.New(domainErr.Message))
		cerr.Meta().Set(ErrorCodeHeader, string(domainErr.Code))
		return cerr
	}
	return connect.NewError(connect.CodeInternal, err)
}
