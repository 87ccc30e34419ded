package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/juststore/internal/config"
	"github.com/juststore/internal/transport/http/handler"
	appmiddleware "github.com/juststore/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. The returned limiter
// must be stopped on shutdown.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, *appmiddleware.RateLimiter) {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	cookie := appmiddleware.SessionCookie{Name: cfg.SessionCookieName}
	authMw := appmiddleware.Auth(deps.Accounts, cookie)

	// 5 requests/second, burst of 10 on the public auth endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	accountH := handler.NewAccountHandler(deps.Accounts)
	sessionH := handler.NewSessionHandler(deps.Accounts, cookie, deps.Staging)
	uploadH := handler.NewUploadHandler(deps.Staging, deps.Files, cfg.MaxUploadBytes)
	fileH := handler.NewFileHandler(deps.Files)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/accounts", accountH.Create)
		r.With(sensitiveRL.Limit).Post("/accounts/otp", accountH.SendOTP)
		r.With(sensitiveRL.Limit).Post("/sessions", sessionH.Create)
		r.Delete("/sessions/current", sessionH.DeleteCurrent)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/accounts/me", accountH.Me)

			r.Get("/uploads", uploadH.List)
			r.Post("/uploads", uploadH.Add)
			r.Put("/uploads", uploadH.Replace)
			r.Delete("/uploads", uploadH.Clear)
			r.Delete("/uploads/{name}", uploadH.Remove)
			r.Post("/uploads/submit", uploadH.Submit)

			r.Get("/files", fileH.List)
			r.Get("/files/{id}", fileH.Download)
			r.Get("/files/{id}/url", fileH.PresignedURL)
			r.Delete("/files/{id}", fileH.Delete)
		})
	})

	return r, sensitiveRL
}
