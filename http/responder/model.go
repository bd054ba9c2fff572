package responder

import "time"

// Response is the JSON envelope of every non-image response.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
	Meta  Meta   `json:"meta"`
}

// Error is the error member of the envelope. Code is the machine readable
// error type, e.g. "illegal_extension".
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Meta struct {
	TraceId string `json:"traceId,omitempty"`
	Took    int64  `json:"took,omitempty"`
}

// Image is a binary response with HTTP freshness metadata.
type Image struct {
	Body         []byte
	ContentType  string
	LastModified time.Time
	Expires      time.Time
	MaxAge       time.Duration
	CacheHit     bool
}
