package responder

import (
	"net/http"
	"strconv"
	"time"

	"github.com/leeforge/thumbnail/json"
)

var fallbackBody = []byte(`{"error":{"code":"internal","message":"encode failed"},"meta":{}}`)

// Responder writes responses for one request.
type Responder struct {
	w       http.ResponseWriter
	r       *http.Request
	panicFn PanicFn
}

// New returns a Responder; a nil panicFn panics on write failures.
func New(w http.ResponseWriter, r *http.Request, panicFn PanicFn) *Responder {
	if panicFn == nil {
		panicFn = DefaultPanicFn
	}
	return &Responder{w: w, r: r, panicFn: panicFn}
}

func (r *Responder) writeRaw(status int, payload []byte, contentType string) {
	r.w.Header().Set("Content-Type", contentType)
	r.w.WriteHeader(status)
	if _, err := r.w.Write(payload); err != nil {
		r.panicFn(r.w, r.r, err)
	}
}

func (r *Responder) writeJSON(status int, payload *Response) {
	raw, err := json.Marshal(payload)
	if err != nil {
		r.writeRaw(http.StatusInternalServerError, fallbackBody, "application/json")
		r.panicFn(r.w, r.r, err)
		return
	}
	r.writeRaw(status, raw, "application/json")
}

// Write sends data in the envelope.
func (r *Responder) Write(status int, data any, opts ...Option) {
	r.writeJSON(status, &Response{Data: data, Meta: *NewMeta(r.r, opts...)})
}

// WriteError sends e in the envelope.
func (r *Responder) WriteError(status int, e Error, opts ...Option) {
	r.writeJSON(status, &Response{Error: &e, Meta: *NewMeta(r.r, opts...)})
}

// Fail maps err with FromError and sends it.
func (r *Responder) Fail(err error, opts ...Option) {
	status, e := FromError(err)
	r.WriteError(status, e, opts...)
}

// WriteImage sends img with Last-Modified, Expires, Cache-Control and X-Cache
// headers.
func (r *Responder) WriteImage(img Image) {
	h := r.w.Header()
	h.Set("Last-Modified", img.LastModified.UTC().Format(http.TimeFormat))
	h.Set("Expires", img.Expires.UTC().Format(http.TimeFormat))
	h.Set("Cache-Control", "public, max-age="+strconv.FormatInt(int64(img.MaxAge/time.Second), 10))
	h.Set("Content-Length", strconv.Itoa(len(img.Body)))
	if img.CacheHit {
		h.Set("X-Cache", "HIT")
	} else {
		h.Set("X-Cache", "MISS")
	}

	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if r.r != nil && r.r.Method == http.MethodHead {
		h.Set("Content-Type", contentType)
		r.w.WriteHeader(http.StatusOK)
		return
	}
	r.writeRaw(http.StatusOK, img.Body, contentType)
}

// Package level shortcuts for handlers that do not keep a Responder.

func Write(w http.ResponseWriter, r *http.Request, status int, data any, opts ...Option) {
	New(w, r, ignoreWriteErr).Write(status, data, opts...)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, e Error, opts ...Option) {
	New(w, r, ignoreWriteErr).WriteError(status, e, opts...)
}

func Fail(w http.ResponseWriter, r *http.Request, err error, opts ...Option) {
	New(w, r, ignoreWriteErr).Fail(err, opts...)
}

func WriteImage(w http.ResponseWriter, r *http.Request, img Image) {
	New(w, r, ignoreWriteErr).WriteImage(img)
}

// A client that went away is not an error worth panicking over.
func ignoreWriteErr(http.ResponseWriter, *http.Request, error) {}
