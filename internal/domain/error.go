package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrLockNotAcquired    = errors.New("lock not acquired")

	// Access & quota
	ErrUnauthenticated = errors.New("not authenticated")
	ErrLocked          = errors.New("content is locked")
	ErrQuotaExceeded   = errors.New("daily quota exceeded")

	// Orders & payments
	ErrInvalidAmount        = errors.New("order amount must be positive")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrGatewayFailure       = errors.New("payment gateway rejected the session")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrUnparseablePayload   = errors.New("unparseable callback payload")
	ErrMissingValidationID  = errors.New("callback carries no validation id")
	ErrPaymentNotValidated  = errors.New("payment not validated by gateway")
	ErrAmountMismatch       = errors.New("validated amount does not match order")
	ErrGatewayNotConfigured = errors.New("payment gateway credentials missing")
)

// Code is the machine-readable error code returned to callers.
type Code string

const (
	CodeNotAuthenticated Code = "not_authenticated"
	CodeNotFound         Code = "not_found"
	CodeLocked           Code = "locked"
	CodeQuotaExceeded    Code = "quota_exceeded"
	CodeInvalidArgument  Code = "invalid_argument"
	CodeGateway          Code = "gateway_error"
	CodeInternal         Code = "internal"
)

// CodeOf maps an error chain to its caller-facing code.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return CodeNotAuthenticated
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrLocked):
		return CodeLocked
	case errors.Is(err, ErrQuotaExceeded):
		return CodeQuotaExceeded
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrUnparseablePayload):
		return CodeInvalidArgument
	case errors.Is(err, ErrGatewayFailure), errors.Is(err, ErrGatewayUnavailable):
		return CodeGateway
	default:
		return CodeInternal
	}
}
