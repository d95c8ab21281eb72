// Package server assembles the HTTP routes.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ayush/todo-auth/internal/api"
	"github.com/ayush/todo-auth/internal/auth"
	"github.com/ayush/todo-auth/internal/middleware"
	"github.com/ayush/todo-auth/internal/todo"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router needs.
type Deps struct {
	Auth           *auth.Handler
	Todos          *todo.Handler
	Tokens         middleware.TokenVerifier
	Users          middleware.PrincipalLoader
	Health         Pinger
	AllowedOrigins []string
	// RequestLog enables chi's access log.
	RequestLog bool
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if d.RequestLog {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Authenticate(d.Tokens, d.Users))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusNotFound, "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", health(d.Health))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/signup", d.Auth.Signup)
		r.Post("/login", d.Auth.Login)
		r.Get("/me", d.Auth.Me)
	})

	r.Route("/api/v1/todos", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/", d.Todos.Create)
		r.Get("/", d.Todos.List)
		r.Put("/{id}", d.Todos.Update)
		r.Delete("/{id}", d.Todos.Delete)
	})

	return r
}

func health(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				slog.WarnContext(r.Context(), "health check failed", "err", err)
				api.Fail(w, http.StatusServiceUnavailable, "Store unavailable")
				return
			}
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
