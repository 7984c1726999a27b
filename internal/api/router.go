package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions carries the settings the router needs from config.
type RouterOptions struct {
	AdminToken         string
	AllowedOrigins     []string
	RateLimitPerMinute int
}

// NewRouter builds and returns the Chi router with all routes configured.
// Public routes serve the browser client; the admin group requires bearer auth.
func NewRouter(handlers *Handlers, opts RouterOptions, db, redis pinger, log *slog.Logger) *chi.Mux {
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 60
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(httprate.LimitByIP(opts.RateLimitPerMinute, time.Minute))

	r.Get("/", handlers.Root)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", HealthHandlerFunc(db, redis, log))
		r.Get("/weather", handlers.GetWeather)
		r.Get("/scene", handlers.GetScene)

		r.Route("/admin", func(r chi.Router) {
			r.Use(BearerAuth(opts.AdminToken))
			r.Get("/lookups", handlers.RecentLookups)
			r.Get("/lookups/bucket/{bucket}", handlers.LookupsByBucket)
			r.Delete("/cache", handlers.PurgeCache)
		})
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
