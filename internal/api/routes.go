package api

import (
	"log/slog"
	"time"

	"ghost.drop/config"
	"ghost.drop/internal/access"
	"ghost.drop/internal/drops"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SetupRouter wires the HTTP surface. Everything is injected; no
// package-level state survives a router rebuild.
func SetupRouter(d *drops.Service, a *access.Service, limiter Limiter, cfg *config.Config, log *slog.Logger) *chi.Mux {
	h := NewHandler(d, a, cfg, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health
	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(JSONOnly)

		if cfg.RateLimit.Enabled {
			upload := cfg.RateLimit.Upload
			retrieve := cfg.RateLimit.Retrieve
			report := cfg.RateLimit.Report

			r.With(RateLimit(limiter, log, "upload", upload.Requests, upload.Window)).
				Post("/upload", h.Upload)
			r.With(RateLimit(limiter, log, "retrieve", retrieve.Requests, retrieve.Window)).
				Get("/retrieve/{id}", h.Retrieve)
			r.With(RateLimit(limiter, log, "report", report.Requests, report.Window)).
				Post("/report-failed-decrypt", h.ReportFailedDecrypt)
		} else {
			r.Post("/upload", h.Upload)
			r.Get("/retrieve/{id}", h.Retrieve)
			r.Post("/report-failed-decrypt", h.ReportFailedDecrypt)
		}

		r.Post("/destroy", h.Destroy)

		if cfg.Access.Enabled {
			r.Route("/access", func(r chi.Router) {
				r.Post("/validate", h.ValidateAccessCode)
				r.Post("/expire", h.ExpireAccessCode)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(AdminToken(cfg.Access.AdminToken))
				r.Post("/codes", h.GenerateAccessCode)
				r.Get("/codes", h.ListAccessCodes)
			})
		}
	})

	return r
}
