package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// Error codes raised by the conversation engine.
const (
	CodeConversationNotFound = "CONVERSATION_NOT_FOUND"
	CodeMessageNotFound      = "MESSAGE_NOT_FOUND"
	CodeCapacityInvariant    = "CAPACITY_INVARIANT"
	CodeTransactionFailed    = "TRANSACTION_FAILED"
	CodeValidation           = "VALIDATION_ERROR"
	CodeUnknownConfigPath    = "UNKNOWN_CONFIG_PATH"
	CodeInternal             = "INTERNAL_ERROR"
)

// AppError represents an application error with an error code plus the
// HTTP status the ops API maps it to.
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"-"`
	cause      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// WithCause attaches the underlying error.
func (e *AppError) WithCause(cause error) *AppError {
	e.cause = cause
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Stack:      string(debug.Stack()),
	}
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// NewConversationNotFound flags a missing conversation where existence
// was required.
func NewConversationNotFound(conversationID int64) *AppError {
	return NewNotFoundError(CodeConversationNotFound,
		fmt.Sprintf("conversation %d does not exist", conversationID))
}

// NewCapacityInvariantViolation flags more than one message over cap
// after an append. It indicates a bug in the eviction step and aborts
// the enclosing transaction.
func NewCapacityInvariantViolation(conversationID, count, cap int64) *AppError {
	return NewInternalServerError(CodeCapacityInvariant,
		fmt.Sprintf("conversation %d holds %d messages with cap %d after eviction", conversationID, count, cap))
}

// NewTransactionFailed wraps a failure inside a store transaction. The
// store guarantees no partial state was persisted; reporting is up to
// the caller.
func NewTransactionFailed(cause error) *AppError {
	appErr := NewInternalServerError(CodeTransactionFailed, "conversation store transaction rolled back")
	return appErr.WithCause(cause)
}

// FromError converts any error to an AppError, passing AppErrors
// through untouched.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    err.Error(),
		cause:      err,
	}
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// IsNotFound reports whether err is any of the not-found codes.
func IsNotFound(err error) bool {
	return IsCode(err, CodeConversationNotFound) || IsCode(err, CodeMessageNotFound)
}
