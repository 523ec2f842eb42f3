package models

import "errors"

// Domain errors. Lifecycle transitions and the payment orchestrator reject
// with these sentinels so handlers can map them to API error codes.
var (
	// ErrCapacityExceeded is returned when a join would push a party past max_members
	ErrCapacityExceeded = errors.New("party capacity exceeded")

	// ErrRejoinBlocked is returned when a user with an inactive membership tries to rejoin
	ErrRejoinBlocked = errors.New("rejoining this party is not allowed")

	// ErrInvalidRole is returned when an operation requires a different member role
	ErrInvalidRole = errors.New("operation not allowed for this role")

	// ErrInvalidTransition is returned for any disallowed lifecycle transition
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPartyNotFound is returned when the referenced party does not exist
	ErrPartyNotFound = errors.New("party not found")

	// ErrAlreadyProcessed signals the settlement attempt was applied earlier;
	// callers must treat it as success, not failure
	ErrAlreadyProcessed = errors.New("payment already processed")

	// ErrMalformedCallback is returned when the provider return URL is missing
	// orderId, paymentKey or amount, or amount does not parse
	ErrMalformedCallback = errors.New("malformed payment callback")

	// ErrStageMissing is returned when a callback arrives with no staged
	// transaction to resume; the flow cannot be recovered blindly
	ErrStageMissing = errors.New("no pending transaction staged")

	// ErrNoCredential is returned when a saved-credential charge is requested
	// but the user holds no billing credential
	ErrNoCredential = errors.New("no billing credential on file")

	// ErrProviderFailure wraps generic payment provider failures
	ErrProviderFailure = errors.New("payment provider request failed")
)

// ErrorCode is the machine-readable code surfaced in API error responses.
type ErrorCode string

const (
	CodeCapacityExceeded  ErrorCode = "CAPACITY_EXCEEDED"
	CodeRejoinBlocked     ErrorCode = "REJOIN_BLOCKED"
	CodeInvalidRole       ErrorCode = "INVALID_ROLE"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAlreadyProcessed  ErrorCode = "ALREADY_PROCESSED"
	CodeMalformedCallback ErrorCode = "MALFORMED_CALLBACK"
	CodeStageMissing      ErrorCode = "STAGE_MISSING"
	CodeNoCredential      ErrorCode = "NO_CREDENTIAL"
	CodeProviderError     ErrorCode = "PROVIDER_ERROR"
)

// MapErrorToCode converts domain errors to API error codes.
func MapErrorToCode(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		return CodeCapacityExceeded
	case errors.Is(err, ErrRejoinBlocked):
		return CodeRejoinBlocked
	case errors.Is(err, ErrInvalidRole):
		return CodeInvalidRole
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrPartyNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyProcessed):
		return CodeAlreadyProcessed
	case errors.Is(err, ErrMalformedCallback):
		return CodeMalformedCallback
	case errors.Is(err, ErrStageMissing):
		return CodeStageMissing
	case errors.Is(err, ErrNoCredential):
		return CodeNoCredential
	default:
		return CodeProviderError
	}
}
