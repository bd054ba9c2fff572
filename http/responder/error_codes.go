package responder

import (
	"context"
	stderrors "errors"
	"net/http"

	apperrors "github.com/leeforge/thumbnail/errors"
)

// Codes for failures raised by the transport itself rather than the service.
const (
	ErrCodeRouteNotFound    = "route_not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeBindFailed       = "bind_failed"
	ErrCodeTimeout          = "timeout"
	ErrCodeInternalServer   = "internal"
)

// FromError maps err onto a status and envelope error. Client errors keep
// their message and details; server errors hide the cause.
func FromError(err error) (int, Error) {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, Error{Code: ErrCodeTimeout, Message: "request timed out"}
	}

	appErr := apperrors.FromError(err)
	status := appErr.Status()
	if status >= http.StatusInternalServerError {
		code := appErr.Code
		if appErr.Type == apperrors.ErrorTypeUnknown || code == "" {
			code = ErrCodeInternalServer
		}
		return status, Error{Code: code, Message: http.StatusText(status)}
	}

	out := Error{Code: appErr.Code, Message: appErr.Error()}
	if out.Code == "" {
		out.Code = string(appErr.Type)
	}
	if len(appErr.Details) > 0 {
		out.Details = appErr.Details
	}
	return status, out
}
