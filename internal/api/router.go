package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Habitat/internal/config"
	"github.com/MikeSquared-Agency/Habitat/internal/hermes"
	"github.com/MikeSquared-Agency/Habitat/internal/labeler"
	"github.com/MikeSquared-Agency/Habitat/internal/metrics"
	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
	"github.com/MikeSquared-Agency/Habitat/internal/store"
)

// NewRouter wires the scoring API. s and h may be nil; persisted-row routes then
// answer 503 and no events are published.
func NewRouter(e *scoring.Engine, l *labeler.Labeler, s store.Store, h hermes.Client, m *metrics.Metrics, cfg config.ServerConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(cfg.RateLimit))

	score := NewScoreHandler(l)
	scores := NewScoresHandler(s, h, m)
	admin := NewAdminHandler(e, l, s)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/score", score.Score)
		r.Post("/score/batch", score.Batch)

		r.Get("/scores", scores.List)
		r.Get("/scores/export", scores.Export)
		r.Get("/scores/{id}", scores.Get)

		r.Get("/params", admin.Params)
		r.Get("/stats", admin.Stats)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken))
			r.Post("/scores/{id}/rating", scores.Rate)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
