package types

import "fmt"

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

const (
	// Internal/Upstream
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamPush       ErrorCode = "upstream_push_unavailable"

	// Scheduler
	ErrCodeSchedulerLock ErrorCode = "scheduler_lock_unavailable"

	// Data integrity
	ErrCodeLedgerAnomaly ErrorCode = "ledger_entry_anomaly"
)

// AppError is the standard application error carrying a typed code, a
// human-readable message, and an optional wrapped cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewAppError creates an AppError wrapping an optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}
