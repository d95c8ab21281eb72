package todo

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayush/todo-auth/internal/apperr"
	"github.com/ayush/todo-auth/internal/auth"
	"github.com/ayush/todo-auth/internal/models"
	"github.com/ayush/todo-auth/internal/store"
)

// Store defines the interface for todo persistence. ListTodos and
// ListTodosByOwner must page identically.
type Store interface {
	CreateTodo(ctx context.Context, t *models.Todo) error
	GetTodo(ctx context.Context, id int64) (*models.Todo, error)
	UpdateTodo(ctx context.Context, id int64, title, description string) (*models.Todo, error)
	DeleteTodo(ctx context.Context, id int64) error
	ListTodos(ctx context.Context, page models.PageRequest) ([]models.Todo, int64, error)
	ListTodosByOwner(ctx context.Context, ownerID int64, page models.PageRequest) ([]models.Todo, int64, error)
}

// Service applies the ownership policy to todo CRUD.
type Service struct {
	todos Store
}

func NewService(todos Store) *Service {
	return &Service{todos: todos}
}

func notFound(err error) error {
	return apperr.NotFound("Todo not found", err)
}

// Create stores a todo owned by p.
func (s *Service) Create(ctx context.Context, p *models.Principal, title, description string) (*models.Todo, error) {
	t := &models.Todo{
		Title:       title,
		Description: description,
		UserID:      p.ID,
		Username:    p.Username,
	}
	if err := s.todos.CreateTodo(ctx, t); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.BadRequest("User not found")
		}
		return nil, err
	}
	return t, nil
}

// List returns every todo for admins and only p's own todos otherwise.
func (s *Service) List(ctx context.Context, p *models.Principal, page models.PageRequest) (*models.TodoPage, error) {
	var (
		items []models.Todo
		total int64
		err   error
	)
	if auth.CanAccessAll(p) {
		items, total, err = s.todos.ListTodos(ctx, page)
	} else {
		items, total, err = s.todos.ListTodosByOwner(ctx, p.ID, page)
	}
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return models.NewTodoPage(items, page, total), nil
}

// authorize loads todo id and checks that p may perform action on it.
func (s *Service) authorize(ctx context.Context, p *models.Principal, id int64, action string) error {
	t, err := s.todos.GetTodo(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(err)
	}
	if err != nil {
		return err
	}
	if !auth.CanModify(p, t.UserID) {
		return apperr.Forbidden(fmt.Sprintf("You are not allowed to %s this todo", action))
	}
	return nil
}

// Update replaces title and description of a todo p owns, or any todo for admins.
func (s *Service) Update(ctx context.Context, p *models.Principal, id int64, title, description string) (*models.Todo, error) {
	if err := s.authorize(ctx, p, id, "update"); err != nil {
		return nil, err
	}
	t, err := s.todos.UpdateTodo(ctx, id, title, description)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(err)
	}
	return t, err
}

// Delete removes a todo p owns, or any todo for admins.
func (s *Service) Delete(ctx context.Context, p *models.Principal, id int64) error {
	if err := s.authorize(ctx, p, id, "delete"); err != nil {
		return err
	}
	if err := s.todos.DeleteTodo(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(err)
		}
		return err
	}
	return nil
}
