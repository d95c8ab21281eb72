package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/todo-auth/internal/apperr"
	"github.com/ayush/todo-auth/internal/models"
	"github.com/ayush/todo-auth/internal/store"
)

// UserStore defines the interface for user persistence. Implementations
// must enforce username and email uniqueness atomically on write.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// Service registers users, verifies credentials and issues tokens.
type Service struct {
	users  UserStore
	tokens *TokenCodec
	cost   int
	// dummyHash is compared against when no user matches, so unknown
	// identifiers cost as much as wrong passwords.
	dummyHash []byte
}

func NewService(users UserStore, tokens *TokenCodec, bcryptCost int) (*Service, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("no-such-user-password"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: dummy hash: %w", err)
	}
	return &Service{users: users, tokens: tokens, cost: bcryptCost, dummyHash: dummy}, nil
}

func duplicateUsername(err error) error {
	return apperr.Duplicate("Username taken", err)
}

func duplicateEmail(email string, err error) error {
	return apperr.Duplicate(fmt.Sprintf("Email %s in use", email), err)
}

// Register creates a USER account. The username is checked before the email.
func (s *Service) Register(ctx context.Context, username, email, password string) error {
	u, err := s.createUser(ctx, username, email, password, models.RoleUser)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "signup success", "userId", u.ID, "username", u.Username)
	return nil
}

func (s *Service) createUser(ctx context.Context, username, email, password string, role models.Role) (*models.User, error) {
	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, duplicateUsername(store.ErrDuplicateUsername)
	}
	taken, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, duplicateEmail(email, store.ErrDuplicateEmail)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{Username: username, Email: email, Password: string(hashed), Role: role}

	// The exists checks above are advisory; the store settles races.
	switch err := s.users.CreateUser(ctx, u); {
	case errors.Is(err, store.ErrDuplicateUsername):
		return nil, duplicateUsername(err)
	case errors.Is(err, store.ErrDuplicateEmail):
		return nil, duplicateEmail(email, err)
	case err != nil:
		return nil, err
	}
	return u, nil
}

// findUser resolves identifier as a username, falling back to an email.
func (s *Service) findUser(ctx context.Context, identifier string) (*models.User, error) {
	u, err := s.users.GetUserByUsername(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		u, err = s.users.GetUserByEmail(ctx, identifier)
	}
	return u, err
}

// Login verifies the credentials and issues a token. An unknown identifier
// and a wrong password produce the same error.
func (s *Service) Login(ctx context.Context, identifier, password string) (*models.AuthResponse, error) {
	u, err := s.findUser(ctx, identifier)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash := s.dummyHash
	if u != nil {
		hash = []byte(u.Password)
	}
	matched := bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
	if u == nil || !matched {
		return nil, apperr.InvalidCredentials()
	}

	p := models.PrincipalFromUser(u)
	token, err := s.tokens.Issue(p)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "login success", "username", u.Username, "roles", p.RoleNames())
	return &models.AuthResponse{Token: token, Username: u.Username, Roles: p.RoleNames()}, nil
}

// LoadPrincipal re-reads the user named by a token subject.
func (s *Service) LoadPrincipal(ctx context.Context, username string) (*models.Principal, error) {
	u, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return models.PrincipalFromUser(u), nil
}
