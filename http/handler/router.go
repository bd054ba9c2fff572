package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/leeforge/thumbnail/http/middleware"
	"github.com/leeforge/thumbnail/http/responder"
	"github.com/leeforge/thumbnail/logging"
	"github.com/leeforge/thumbnail/media/queue"
	"github.com/leeforge/thumbnail/metrics"
	"github.com/leeforge/thumbnail/thumbnail"
)

// Deps are the collaborators the routes serve from.
type Deps struct {
	Service        *thumbnail.Service
	Warmer         *queue.Warmer
	Metrics        *metrics.Collector
	Logger         logging.Logger
	RequestTimeout time.Duration
	// StorageName is reported by /healthz.
	StorageName string
}

// NewRouter mounts
//
//	GET|HEAD /images/{id...}  render a thumbnail
//	POST     /warm/{id...}    queue a warm-up (202), or run it with ?wait
//	GET      /healthz
//	GET      /metrics
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logging.Global()
	}
	h := &Handler{
		svc:     d.Service,
		warmer:  d.Warmer,
		logger:  d.Logger.Named("http"),
		storage: d.StorageName,
	}

	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		middleware.TraceIDMiddleware(),
		middleware.TimingMiddleware(),
		logging.HTTPMiddleware(h.logger),
		logging.RecoveryMiddleware(h.logger),
		d.Metrics.Middleware,
	)
	r.NotFound(responder.NotFound)
	r.MethodNotAllowed(responder.MethodNotAllowed)

	r.Get("/healthz", h.Health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(chimw.Timeout(d.RequestTimeout))
		}
		r.Get("/images/*", h.Image)
		r.Head("/images/*", h.Image)
		r.Post("/warm/*", h.Warm)
	})

	return r
}
