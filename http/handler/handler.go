package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leeforge/thumbnail/cache"
	"github.com/leeforge/thumbnail/http/binding"
	"github.com/leeforge/thumbnail/http/middleware"
	"github.com/leeforge/thumbnail/http/responder"
	"github.com/leeforge/thumbnail/logging"
	"github.com/leeforge/thumbnail/media/queue"
	"github.com/leeforge/thumbnail/thumbnail"
)

type Handler struct {
	svc     *thumbnail.Service
	warmer  *queue.Warmer
	logger  logging.Logger
	storage string
}

type imageQuery struct {
	Size      string `query:"size" validate:"max=16"`
	Watermark bool   `query:"watermark"`
	Ext       string `query:"ext" validate:"max=8"`
	NoCache   bool   `query:"nocache"`
}

type warmQuery struct {
	Wait bool `query:"wait"`
}

func took(r *http.Request) responder.Option {
	return responder.WithTook(middleware.GetRequestDurationFromRequest(r))
}

func bindFailed(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := err.(binding.ValidationErrors); ok {
		responder.BindError(w, r, []binding.BindError(ve))
		return
	}
	responder.BindError(w, r, []string{err.Error()})
}

// Image serves GET /images/{id...}.
func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	var q imageQuery
	if err := binding.Query(r, &q); err != nil {
		bindFailed(w, r, err)
		return
	}

	res, err := h.svc.Render(r.Context(), thumbnail.Request{
		ID:        chi.URLParam(r, "*"),
		Size:      q.Size,
		Watermark: q.Watermark,
		Extension: q.Ext,
		NoCache:   q.NoCache,
	})
	if err != nil {
		responder.Fail(w, r, err, took(r))
		return
	}

	responder.WriteImage(w, r, responder.Image{
		Body:         res.Body,
		ContentType:  res.ContentType,
		LastModified: res.LastModified,
		Expires:      res.Expires,
		MaxAge:       res.MaxAge,
		CacheHit:     res.CacheHit,
	})
}

type warmAccepted struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Formats []string `json:"formats"`
}

// Warm serves POST /warm/{id...}. The identifier is validated before the
// job is queued so a bad id fails fast.
func (h *Handler) Warm(w http.ResponseWriter, r *http.Request) {
	var q warmQuery
	if err := binding.Query(r, &q); err != nil {
		bindFailed(w, r, err)
		return
	}

	id, err := cache.NormalizeID(chi.URLParam(r, "*"))
	if err != nil {
		responder.Fail(w, r, err, took(r))
		return
	}

	if q.Wait || h.warmer == nil {
		report, err := h.svc.Warm(r.Context(), id)
		if err != nil {
			responder.Fail(w, r, err, took(r))
			return
		}
		responder.OK(w, r, report, took(r))
		return
	}

	job := queue.Job{ID: id, TraceID: logging.GetTraceID(r.Context())}
	if err := h.warmer.Submit(job); err != nil {
		logging.WithContext(h.logger, r.Context()).Warn("warm job rejected", zap.String("image_id", id), zap.Error(err))
		responder.Fail(w, r, err, took(r))
		return
	}
	responder.Accepted(w, r, warmAccepted{ID: id, Status: "queued", Formats: h.svc.WarmFormats()}, took(r))
}

type health struct {
	Status  string       `json:"status"`
	Storage string       `json:"storage,omitempty"`
	Warm    *queue.Stats `json:"warm,omitempty"`
}

// Health serves GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	out := health{Status: "ok", Storage: h.storage}
	if h.warmer != nil {
		stats := h.warmer.Stats()
		out.Warm = &stats
	}
	responder.OK(w, r, out)
}
