package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Registry errors
	ErrDuplicateVersion       = errors.New("model version already registered")
	ErrVersionNotFound        = errors.New("model version not found")
	ErrConcurrentModification = errors.New("registry state changed during swap")

	// Import errors
	ErrMalformedPackage = errors.New("malformed model package")

	// Deployment errors
	ErrValidationRequired = errors.New("deployment requires a valid validation result")
	ErrModelInUse         = errors.New("model version is deployed or referenced by agents")

	// Validation errors
	ErrValidationTimeout = errors.New("validation exceeded time bound")
	ErrInvalidThreshold  = errors.New("invalid threshold: must be between 0 and 1")

	// Storage errors
	ErrStorageConnectionFailed = errors.New("storage connection failed")
	ErrStorageWriteFailed      = errors.New("storage write failed")
	ErrStorageReadFailed       = errors.New("storage read failed")
	ErrDataNotFound            = errors.New("data not found")

	// Internal errors
	ErrInternal = errors.New("internal error")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeRegistry   ErrorType = "registry"
	ErrorTypeImport     ErrorType = "import"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDeployment ErrorType = "deployment"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes for the typed error kinds the core returns
const (
	CodeDuplicateVersion       = "DUPLICATE_VERSION"
	CodeMalformedPackage       = "MALFORMED_PACKAGE"
	CodeVersionNotFound        = "VERSION_NOT_FOUND"
	CodeValidationRequired     = "VALIDATION_REQUIRED"
	CodeValidationTimeout      = "VALIDATION_TIMEOUT"
	CodeModelInUse             = "MODEL_IN_USE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeStorageError           = "STORAGE_ERROR"
	CodeInternalError          = "INTERNAL_ERROR"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Retryable  bool                   `json:"retryable"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Retryable:  false,
		HTTPStatus: getDefaultHTTPStatus(errType, code),
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Cause:      err,
		Retryable:  isRetryable(err),
		HTTPStatus: getDefaultHTTPStatus(errType, code),
	}
}

// NewDuplicateVersionError reports an import collision on an existing version
func NewDuplicateVersionError(version string) *AppError {
	return NewAppError(ErrorTypeConflict, CodeDuplicateVersion,
		fmt.Sprintf("model version %s already exists", version))
}

// NewMalformedPackageError reports a package that fails structural checks
func NewMalformedPackageError(details string) *AppError {
	return NewAppError(ErrorTypeImport, CodeMalformedPackage, "malformed model package").
		WithDetails(details)
}

// NewVersionNotFoundError reports a lookup of an unknown version
func NewVersionNotFoundError(version string) *AppError {
	return NewAppError(ErrorTypeRegistry, CodeVersionNotFound,
		fmt.Sprintf("model version %s not found", version))
}

// NewValidationRequiredError reports a deploy blocked by the validation policy
func NewValidationRequiredError(version string) *AppError {
	return NewAppError(ErrorTypeDeployment, CodeValidationRequired,
		fmt.Sprintf("model version %s has no passing validation result", version))
}

// NewValidationTimeoutError reports validation exceeding its time bound
func NewValidationTimeoutError(version string) *AppError {
	return NewAppError(ErrorTypeValidation, CodeValidationTimeout,
		fmt.Sprintf("validation of model version %s timed out", version))
}

// NewModelInUseError reports a delete blocked by deployment or agent bindings
func NewModelInUseError(version, reason string) *AppError {
	return NewAppError(ErrorTypeDeployment, CodeModelInUse,
		fmt.Sprintf("model version %s is in use", version)).WithDetails(reason)
}

// NewConcurrentModificationError reports an optimistic check failing inside a swap
func NewConcurrentModificationError(details string) *AppError {
	e := NewAppError(ErrorTypeConflict, CodeConcurrentModification,
		"deployed version changed underneath the swap").WithDetails(details)
	e.Retryable = true
	return e
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, CodeInternalError, message)
}

// getDefaultHTTPStatus returns the default HTTP status for an error type
func getDefaultHTTPStatus(errType ErrorType, code string) int {
	switch code {
	case CodeVersionNotFound:
		return 404
	case CodeDuplicateVersion, CodeConcurrentModification, CodeModelInUse:
		return 409
	case CodeMalformedPackage:
		return 400
	case CodeValidationRequired:
		return 412
	case CodeValidationTimeout:
		return 504
	}
	switch errType {
	case ErrorTypeImport, ErrorTypeValidation:
		return 400
	case ErrorTypeConflict:
		return 409
	case ErrorTypeStorage:
		return 503
	default:
		return 500
	}
}

// isRetryable determines if an error is retryable
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrStorageConnectionFailed):
		return true
	case errors.Is(err, ErrConcurrentModification):
		return true
	case errors.Is(err, ErrValidationTimeout):
		return true
	default:
		return false
	}
}

// IsCode reports whether err is an AppError carrying the given code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
