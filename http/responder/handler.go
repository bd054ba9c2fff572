package responder

import (
	"net/http"

	"github.com/leeforge/thumbnail/logging"
)

type Option func(*Meta)

// PanicFn receives write failures that can no longer be reported to the
// client.
type PanicFn func(http.ResponseWriter, *http.Request, error)

func DefaultPanicFn(w http.ResponseWriter, r *http.Request, err error) {
	panic(err)
}

func WithTraceID(id string) Option {
	return func(m *Meta) {
		m.TraceId = id
	}
}

func WithTook(ms int64) Option {
	return func(m *Meta) {
		m.Took = ms
	}
}

// NewMeta builds the meta member. The trace id defaults to the one carried
// by the request context.
func NewMeta(r *http.Request, opts ...Option) *Meta {
	meta := Meta{}
	if r != nil {
		meta.TraceId = logging.GetTraceID(r.Context())
	}
	for _, opt := range opts {
		opt(&meta)
	}
	return &meta
}
