// Package errors provides the structured error taxonomy shared by the
// reconciliation, readiness and payout paths.
package errors

import "connectrpc.com/connect"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeNotFound Code = "NOT_FOUND"

	// State errors: duplicate transaction, closed group, round not ready.
	CodeConflict Code = "CONFLICT"

	// Selection errors
	CodeInvalidSelection     Code = "INVALID_SELECTION"
	CodeNoEligibleRecipients Code = "NO_ELIGIBLE_RECIPIENTS"
	CodeNotSupported         Code = "NOT_SUPPORTED"

	// Policy errors
	CodePolicyViolation Code = "POLICY_VIOLATION"

	// Request errors
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// Storage errors
	CodePersistenceFailure Code = "PERSISTENCE_FAILURE"
)

// ConnectCode maps a domain code onto the connect status code returned to callers.
func (c Code) ConnectCode() connect.Code {
	switch c {
	case CodeNotFound:
		return connect.CodeNotFound
	case CodeConflict:
		return connect.CodeFailedPrecondition
	case CodeInvalidSelection, CodeInvalidArgument:
		return connect.CodeInvalidArgument
	case CodeNoEligibleRecipients, CodePolicyViolation:
		return connect.CodeFailedPrecondition
	case CodeNotSupported:
		return connect.CodeUnimplemented
	case CodePermissionDenied:
		return connect.CodePermissionDenied
	case CodePersistenceFailure:
		return connect.CodeUnavailable
	default:
		return connect.CodeInternal
	}
}
