package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeInternal      ErrorType = "internal"
	ErrorTypeDecode        ErrorType = "decode"
	ErrorTypeDimension     ErrorType = "dimension"
	ErrorTypePipelineStage ErrorType = "pipeline_stage"
	ErrorTypePersistence   ErrorType = "persistence"
	ErrorTypeNotReady      ErrorType = "not_ready"
	ErrorTypeJobFailed     ErrorType = "job_failed"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeUnavailable   ErrorType = "unavailable"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy carrying extra detail text
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithStatus returns a copy answering with a different HTTP status
func (e *AppError) WithStatus(status int) *AppError {
	cp := *e
	cp.StatusCode = status
	return &cp
}

func newError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newError(ErrorTypeNetwork, http.StatusBadGateway, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// NewDecodeError reports an input that is not a readable raster
func NewDecodeError(message string, cause error) *AppError {
	return newError(ErrorTypeDecode, http.StatusUnprocessableEntity, message, cause)
}

// NewDimensionError reports a raster with zero area
func NewDimensionError(message string, cause error) *AppError {
	return newError(ErrorTypeDimension, http.StatusUnprocessableEntity, message, cause)
}

// NewPipelineStageError reports a classifier that failed internally
func NewPipelineStageError(stage string, cause error) *AppError {
	return newError(ErrorTypePipelineStage, http.StatusInternalServerError,
		fmt.Sprintf("stage %q failed", stage), cause)
}

// NewPersistenceError reports a result that could not be saved or loaded
func NewPersistenceError(message string, cause error) *AppError {
	return newError(ErrorTypePersistence, http.StatusInternalServerError, message, cause)
}

// NewNotReadyError reports a job whose result is still being produced
func NewNotReadyError(message string) *AppError {
	return newError(ErrorTypeNotReady, http.StatusAccepted, message, nil)
}

// NewJobFailedError reports a result query against a failed job
func NewJobFailedError(message string) *AppError {
	return newError(ErrorTypeJobFailed, http.StatusConflict, message, nil)
}

// NewConflictError reports an operation not allowed in the current state
func NewConflictError(message string, cause error) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message, cause)
}

// NewUnavailableError reports temporary back-pressure
func NewUnavailableError(message string, cause error) *AppError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable, message, cause)
}

// IsType checks if the error chain holds an AppError of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetType returns the AppError type in the chain, or internal
func GetType(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}
