package auth

import (
	"context"
	"log/slog"

	"github.com/ayush/todo-auth/internal/apperr"
	"github.com/ayush/todo-auth/internal/models"
)

// EnsureAdmin creates an ADMIN account unless the username already exists.
// It is idempotent and reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	u, err := s.createUser(ctx, username, email, password, models.RoleAdmin)
	if err != nil {
		// Another instance won the race.
		if apperr.KindOf(err) == apperr.KindDuplicate {
			return false, nil
		}
		return false, err
	}
	slog.InfoContext(ctx, "bootstrap admin created", "userId", u.ID, "username", u.Username)
	return true, nil
}
