package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Validation errors
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInvalid    ErrorType = "invalid"

	// Request errors raised while resolving a transform
	ErrorTypeIllegalExtension      ErrorType = "illegal_extension"
	ErrorTypeIllegalSize           ErrorType = "illegal_size"
	ErrorTypeUnsupportedSize       ErrorType = "unsupported_size_grammar"
	ErrorTypeUndefinedResizeMethod ErrorType = "undefined_resize_method"
	ErrorTypeIllegalIdentifier     ErrorType = "illegal_identifier"
	ErrorTypeUnknownOperation      ErrorType = "unknown_operation"

	// Lookup errors
	ErrorTypeNotFound ErrorType = "not_found"

	// System errors
	ErrorTypeStorage     ErrorType = "storage"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	InnerError error                  `json:"-"`
	Stack      []string               `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.InnerError != nil {
		return e.InnerError.Error()
	}
	return string(e.Type)
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithMessage adds a message to the error
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithCode adds a code to the error
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithHTTPStatus sets the HTTP status code
func (e *AppError) WithHTTPStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// WithStack captures the call stack
func (e *AppError) WithStack() *AppError {
	e.Stack = captureStack(3)
	return e
}

// Is reports whether target is an AppError of the same type.
func (e *AppError) Is(target error) bool {
	if targetApp, ok := target.(*AppError); ok {
		return e.Type == targetApp.Type
	}
	return false
}

// Status returns the HTTP status for the error, defaulting to 500.
func (e *AppError) Status() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

// Sentinels for errors.Is matching. Never mutate these; use the constructors.
var (
	ErrIllegalExtension      = &AppError{Type: ErrorTypeIllegalExtension, HTTPStatus: http.StatusForbidden}
	ErrIllegalSize           = &AppError{Type: ErrorTypeIllegalSize, HTTPStatus: http.StatusForbidden}
	ErrUnsupportedSize       = &AppError{Type: ErrorTypeUnsupportedSize, HTTPStatus: http.StatusBadRequest}
	ErrUndefinedResizeMethod = &AppError{Type: ErrorTypeUndefinedResizeMethod, HTTPStatus: http.StatusForbidden}
	ErrIllegalIdentifier     = &AppError{Type: ErrorTypeIllegalIdentifier, HTTPStatus: http.StatusBadRequest}
	ErrUnknownOperation      = &AppError{Type: ErrorTypeUnknownOperation, HTTPStatus: http.StatusBadRequest}
	ErrNotFound              = &AppError{Type: ErrorTypeNotFound, HTTPStatus: http.StatusNotFound}
	ErrStorage               = &AppError{Type: ErrorTypeStorage, HTTPStatus: http.StatusInternalServerError}
	ErrInvalid               = &AppError{Type: ErrorTypeInvalid, HTTPStatus: http.StatusBadRequest}
	ErrUnavailable           = &AppError{Type: ErrorTypeUnavailable, HTTPStatus: http.StatusServiceUnavailable}
)

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		Code:       string(ErrorTypeUnknown),
		Message:    err.Error(),
		InnerError: err,
	}
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
	}
}

func NewValidation(message string) *AppError {
	return New(ErrorTypeValidation, message).WithHTTPStatus(http.StatusBadRequest)
}

func NewInvalid(field string, value interface{}, reason string) *AppError {
	return New(ErrorTypeInvalid, fmt.Sprintf("invalid value for %s: %v", field, value)).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason).
		WithHTTPStatus(http.StatusBadRequest)
}

// NewIllegalExtension reports an output extension outside the allow-list.
func NewIllegalExtension(ext string) *AppError {
	return New(ErrorTypeIllegalExtension, "Illegal file extension.").
		WithDetail("extension", ext).
		WithHTTPStatus(http.StatusForbidden)
}

// NewIllegalSize reports a size token that is not alphanumeric or not allowed.
func NewIllegalSize(raw string) *AppError {
	return New(ErrorTypeIllegalSize, "Illegal size.").
		WithDetail("size", raw).
		WithHTTPStatus(http.StatusForbidden)
}

// NewUnsupportedSize reports an alphanumeric size token matching no grammar.
func NewUnsupportedSize(raw string, forms []string) *AppError {
	return New(ErrorTypeUnsupportedSize, "Illegal size. Supported: "+strings.Join(forms, ",")).
		WithDetail("size", raw).
		WithDetail("supported", forms).
		WithHTTPStatus(http.StatusBadRequest)
}

func NewUndefinedResizeMethod(mode string) *AppError {
	return New(ErrorTypeUndefinedResizeMethod, "Undefined resize method.").
		WithDetail("mode", mode).
		WithHTTPStatus(http.StatusForbidden)
}

func NewIllegalIdentifier(id string, reason string) *AppError {
	return New(ErrorTypeIllegalIdentifier, "Illegal image identifier.").
		WithDetail("id", id).
		WithDetail("reason", reason).
		WithHTTPStatus(http.StatusBadRequest)
}

func NewUnknownOperation(op interface{}) *AppError {
	return New(ErrorTypeUnknownOperation, fmt.Sprintf("unknown operation %v", op)).
		WithDetail("operation", op).
		WithHTTPStatus(http.StatusBadRequest)
}

// NewNotFound reports a missing resource, e.g. a source image.
func NewNotFound(resource string, id interface{}) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id).
		WithHTTPStatus(http.StatusNotFound)
}

// NewStorage wraps a blob backend failure.
func NewStorage(op, path string, err error) *AppError {
	return WrapWithType(err, ErrorTypeStorage, fmt.Sprintf("storage %s %s failed", op, path)).
		WithDetail("op", op).
		WithDetail("path", path).
		WithHTTPStatus(http.StatusInternalServerError)
}

func NewTimeout(message string) *AppError {
	return New(ErrorTypeTimeout, message).WithHTTPStatus(http.StatusGatewayTimeout)
}

// NewUnavailable reports a temporarily saturated or stopping component.
func NewUnavailable(message string) *AppError {
	return New(ErrorTypeUnavailable, message).WithHTTPStatus(http.StatusServiceUnavailable)
}

func NewInternal(message string) *AppError {
	return New(ErrorTypeInternal, message).WithHTTPStatus(http.StatusInternalServerError)
}

// IsClientError reports whether err is a request error that must never be
// retried or cached.
func IsClientError(err error) bool {
	appErr := FromError(err)
	if appErr == nil {
		return false
	}
	status := appErr.Status()
	return status >= 400 && status < 500
}

// captureStack captures the call stack
func captureStack(skip int) []string {
	var stack []string
	for i := skip; i < 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		funcName := fn.Name()
		if idx := strings.LastIndex(funcName, "/"); idx >= 0 {
			funcName = funcName[idx+1:]
		}

		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, funcName))
	}
	return stack
}
