package responder

import (
	"net/http"
)

func OK(w http.ResponseWriter, r *http.Request, data any, opts ...Option) {
	Write(w, r, http.StatusOK, data, opts...)
}

func Accepted(w http.ResponseWriter, r *http.Request, data any, opts ...Option) {
	Write(w, r, http.StatusAccepted, data, opts...)
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusNotFound, Error{Code: ErrCodeRouteNotFound, Message: "Route Not Found"})
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusMethodNotAllowed, Error{Code: ErrCodeMethodNotAllowed, Message: "Method Not Allowed"})
}

// BindError responds 400 for a request that could not be bound or failed
// validation.
func BindError(w http.ResponseWriter, r *http.Request, details any) {
	WriteError(w, r, http.StatusBadRequest, Error{Code: ErrCodeBindFailed, Message: "Invalid Request", Details: details})
}

func InternalServerError(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = http.StatusText(http.StatusInternalServerError)
	}
	WriteError(w, r, http.StatusInternalServerError, Error{Code: ErrCodeInternalServer, Message: message})
}
