// Package app assembles the HTTP router from config, middleware and the
// handler set.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ghostradio/internal/adapter/httpserver"
	"github.com/fairyhunter13/ghostradio/internal/adapter/observability"
	"github.com/fairyhunter13/ghostradio/internal/config"
)

// ParseOrigins splits a comma-separated origin list, trimming spaces.
// Empty input allows all origins.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middleware and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// mutating endpoints are rate limited per client
	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		wr.Use(httpserver.TimeoutMiddleware(30 * time.Second))
		wr.Post("/api/generate", srv.GenerateHandler())
		wr.Post("/api/cancel/{jobID}", srv.CancelHandler())
		wr.Delete("/api/episodes/{episodeID}", srv.DeleteEpisodeHandler())
	})

	r.Get("/api/progress/{jobID}", srv.ProgressHandler())
	r.Get("/api/jobs", srv.ActiveJobsHandler())
	r.Get("/api/episodes", srv.EpisodesHandler())
	r.Get("/api/qrcode", srv.QRCodeHandler())

	r.Get("/health", srv.HealthzHandler())
	r.Get("/health/worker", srv.HealthWorkerHandler())
	r.Get("/health/system", srv.HealthSystemHandler())
	r.Get("/health/full", srv.HealthFullHandler())
	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	// audio, scripts and feed.xml are served straight from the episodes tree
	fileServer := http.StripPrefix("/episodes/", http.FileServer(http.Dir(cfg.EpisodesRoot())))
	r.Get("/episodes/*", fileServer.ServeHTTP)

	return httpserver.SecurityHeaders(otelhttp.NewHandler(r, "http.server"))
}
