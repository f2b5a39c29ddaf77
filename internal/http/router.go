package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/creatorhub/sessiond/internal/http/handlers"
	"github.com/creatorhub/sessiond/internal/middleware"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	sessionHandler *handlers.SessionHandler,
	achievementHandler *handlers.AchievementHandler,
	sessions middleware.SessionReader,
	limiter *middleware.RateLimiter,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", sessionHandler.HandleState)
		r.Get("/notifications", sessionHandler.HandleNotifications)

		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(middleware.RateLimit(limiter, middleware.GetIPKey))
			}
			r.Post("/login", sessionHandler.HandleLogin)
			r.Post("/2fa", sessionHandler.HandleVerifyTwoFactor)
			r.Post("/register", sessionHandler.HandleRegister)
			r.Post("/logout", sessionHandler.HandleLogout)
			r.Post("/refresh", sessionHandler.HandleRefresh)
		})

		// Protected routes (require a logged-in user)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(sessions))
			r.Patch("/user", sessionHandler.HandleUpdateUser)
		})
	})

	r.Route("/achievements", func(r chi.Router) {
		r.Get("/catalog", achievementHandler.HandleCatalog)
		r.Post("/evaluate", achievementHandler.HandleEvaluate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(sessions))
			r.Get("/", achievementHandler.HandleCurrent)
		})
	})

	return r
}
