package api

import (
	"net/http"

	"github.com/drew/identity-service/internal/api/handlers"
	"github.com/drew/identity-service/internal/api/middleware"
	"github.com/drew/identity-service/internal/auth"
	"github.com/drew/identity-service/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(identity *service.IdentityService, tokens *auth.TokenIssuer) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	r.Get("/health", handlers.Health)

	userHandler := handlers.NewUserHandler(identity)

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", userHandler.Register)
		r.Post("/login", userHandler.Login)
		r.Get("/", userHandler.List)
		r.Get("/{id}", userHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens))
			r.Get("/me", userHandler.Me)
		})
	})

	return r
}
