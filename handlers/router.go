package handlers

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/nijaru/yt-itinerary/metrics"
	"github.com/nijaru/yt-itinerary/middleware"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Logger      *logrus.Logger
	Metrics     *metrics.Registry
	RateLimiter middleware.RateLimiter
	CORS        middleware.CORSConfig
	StaticDir   string
}

// NewRouter mounts the API, health, metrics and, when StaticDir exists, the
// frontend. Only /api routes are rate limited. Recovery and RequestID wrap the
// router itself so panics in routing are caught and every log line has an id.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Logging(cfg.Logger, cfg.Metrics),
		middleware.CORS(cfg.CORS),
	)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}
		r.Get("/generate", h.Generate)
	})

	if dirExists(cfg.StaticDir) {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	} else {
		if cfg.StaticDir != "" {
			cfg.Logger.WithField("dir", cfg.StaticDir).Warn("Static directory not found, frontend disabled")
		}
		r.NotFound(h.NotFound)
	}

	return middleware.Chain(r,
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
	)
}

func dirExists(dir string) bool {
	if dir == "" {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
