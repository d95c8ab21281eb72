package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ayush/todo-auth/internal/api"
	"github.com/ayush/todo-auth/internal/apperr"
	"github.com/ayush/todo-auth/internal/auth"
	"github.com/ayush/todo-auth/internal/models"
	"github.com/ayush/todo-auth/internal/store"
)

const bearerPrefix = "Bearer "

// TokenVerifier checks bearer tokens.
type TokenVerifier interface {
	Validate(token string) bool
	Subject(token string) string
}

// PrincipalLoader resolves a token subject to a fresh principal.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, username string) (*models.Principal, error)
}

// Authenticate resolves the bearer token, if any, to a principal and
// attaches it to the request context. It never rejects a request: a missing,
// invalid or orphaned token leaves the request anonymous and routes that
// need a principal decide what to do.
func Authenticate(tokens TokenVerifier, users PrincipalLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				next.ServeHTTP(w, r)
				return
			}
			slog.DebugContext(r.Context(), "bearer token present", "path", r.URL.Path)

			token := header[len(bearerPrefix):]
			if !tokens.Validate(token) {
				next.ServeHTTP(w, r)
				return
			}

			p, err := users.LoadPrincipal(r.Context(), tokens.Subject(token))
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					slog.WarnContext(r.Context(), "principal lookup failed", "err", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAuth rejects requests that carry no principal with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFrom(r.Context()); !ok {
			api.WriteError(w, r, apperr.Unauthenticated())
			return
		}
		next.ServeHTTP(w, r)
	})
}
