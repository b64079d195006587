package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mkallaste/podforge/internal/api/handlers"
	"github.com/mkallaste/podforge/internal/api/middleware"
	"github.com/mkallaste/podforge/internal/auth"
	"github.com/mkallaste/podforge/internal/config"
	"github.com/mkallaste/podforge/internal/queue"
	"github.com/mkallaste/podforge/internal/registry"
)

type Router struct {
	mux      *chi.Mux
	reg      registry.Registry
	enqueuer handlers.Enqueuer
	cfg      *config.Config
	jwt      *auth.JWTMiddleware
}

func NewRouter(reg registry.Registry, queueClient *queue.Client, cfg *config.Config) *Router {
	return &Router{
		mux:      chi.NewRouter(),
		reg:      reg,
		enqueuer: queueClient,
		cfg:      cfg,
		jwt:      auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.reg)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		podcasts := handlers.NewPodcastHandler(rt.reg, rt.enqueuer, rt.cfg.Audio.UploadDir)
		r.Route("/podcasts", func(r chi.Router) {
			r.Post("/", podcasts.Submit)
			r.Get("/{id}", podcasts.Status)
			r.Get("/{id}/download", podcasts.Download)
		})
	})

	return r
}
