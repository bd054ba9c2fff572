package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/leeforge/thumbnail/logging"
)

// TraceIDHeader carries the trace id in both directions.
const TraceIDHeader = "X-Trace-ID"

var traceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,128}$`)

// TraceIDMiddleware reuses a well formed incoming X-Trace-ID or generates a
// UUID, echoes it in the response and stores it in the request context where
// logging.WithContext finds it.
func TraceIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceIDHeader)
			if !traceIDPattern.MatchString(traceID) {
				traceID = uuid.New().String()
			}

			w.Header().Set(TraceIDHeader, traceID)
			ctx := logging.SetTraceID(r.Context(), traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTraceIDFromRequest retrieves the trace ID from request context
func GetTraceIDFromRequest(r *http.Request) string {
	return logging.GetTraceID(r.Context())
}
