package responder

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/thumbnail/errors"
	"github.com/leeforge/thumbnail/logging"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestResponderWrite(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	var panicCalled bool
	res := New(rr, req, func(http.ResponseWriter, *http.Request, error) { panicCalled = true })
	res.Write(http.StatusAccepted, "queued", WithTraceID("trace"), WithTook(42))

	assert.False(t, panicCalled)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	resp := decode(t, rr)
	assert.Equal(t, "queued", resp.Data)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "trace", resp.Meta.TraceId)
	assert.Equal(t, int64(42), resp.Meta.Took)
}

func TestTraceIDFromContext(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logging.SetTraceID(req.Context(), "ctx-trace"))

	OK(rr, req, map[string]string{"status": "ok"})
	assert.Equal(t, "ctx-trace", decode(t, rr).Meta.TraceId)
}

func TestFail_ClientErrorKeepsDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Fail(rr, req, fmt.Errorf("render: %w", apperrors.NewIllegalExtension("gif")), WithTraceID("t1"))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{
		"error": {"code": "illegal_extension", "message": "Illegal file extension.", "details": {"extension": "gif"}},
		"meta": {"traceId": "t1"}
	}`, rr.Body.String())
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"illegal size", apperrors.NewIllegalSize("1-1"), http.StatusForbidden, "illegal_size"},
		{"unsupported size", apperrors.NewUnsupportedSize("abc", []string{"x{x}"}), http.StatusBadRequest, "unsupported_size_grammar"},
		{"not found", apperrors.NewNotFound("image", "a"), http.StatusNotFound, "not_found"},
		{"storage", apperrors.NewStorage("read", "p", stderrors.New("disk")), http.StatusInternalServerError, "storage"},
		{"plain", stderrors.New("boom"), http.StatusInternalServerError, ErrCodeInternalServer},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeTimeout},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, e := FromError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, e.Code)
		})
	}
}

func TestFromError_HidesServerCause(t *testing.T) {
	_, e := FromError(apperrors.NewStorage("write", "cache/x", stderrors.New("secret path")))
	assert.Equal(t, "Internal Server Error", e.Message)
	assert.Nil(t, e.Details)
}

func TestWriteImage(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/images/a", nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	WriteImage(rr, req, Image{
		Body:         []byte("jpegbytes"),
		ContentType:  "image/jpeg",
		LastModified: now,
		Expires:      now.Add(time.Hour),
		MaxAge:       time.Hour,
		CacheHit:     true,
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "jpegbytes", rr.Body.String())
	assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))
	assert.Equal(t, "Sun, 01 Mar 2026 12:00:00 GMT", rr.Header().Get("Last-Modified"))
	assert.Equal(t, "Sun, 01 Mar 2026 13:00:00 GMT", rr.Header().Get("Expires"))
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	assert.Equal(t, "HIT", rr.Header().Get("X-Cache"))
	assert.Equal(t, "9", rr.Header().Get("Content-Length"))
}

func TestWriteImage_HeadAndMiss(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodHead, "/images/a", nil)

	WriteImage(rr, req, Image{Body: []byte("png")})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))
	assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
}

func TestResponderWriteFallbackOnMarshalError(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	var captured error
	res := New(rr, req, func(_ http.ResponseWriter, _ *http.Request, err error) { captured = err })
	res.Write(http.StatusOK, map[string]any{"unsupported": make(chan int)})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, string(fallbackBody), rr.Body.String())
	assert.Error(t, captured)
}

func TestConvenience(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rr := httptest.NewRecorder()
	NotFound(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, ErrCodeRouteNotFound, decode(t, rr).Error.Code)

	rr = httptest.NewRecorder()
	MethodNotAllowed(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	BindError(rr, req, []string{"size is invalid"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, ErrCodeBindFailed, decode(t, rr).Error.Code)

	rr = httptest.NewRecorder()
	InternalServerError(rr, req, "")
	assert.Equal(t, "Internal Server Error", decode(t, rr).Error.Message)
}
