package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ayush/todo-auth/internal/models"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb)
}

func mustCreateUser(t *testing.T, s *RedisStore, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@example.com", Password: "hash", Role: models.RoleUser}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func TestRedisUserUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t)
	jane := mustCreateUser(t, s, "jane")

	err := s.CreateUser(ctx, &models.User{Username: "jane", Email: "other@example.com", Role: models.RoleUser})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("same username: err = %v, want ErrDuplicateUsername", err)
	}
	err = s.CreateUser(ctx, &models.User{Username: "janet", Email: "jane@example.com", Role: models.RoleUser})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("same email: err = %v, want ErrDuplicateEmail", err)
	}
	// The failed signup must release its username claim.
	if ok, _ := s.ExistsByUsername(ctx, "janet"); ok {
		t.Fatal("janet claim leaked after duplicate email")
	}

	got, err := s.GetUserByEmail(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != jane.ID || got.Role != models.RoleUser || got.Password != "hash" {
		t.Fatalf("GetUserByEmail = %+v, want %+v", got, jane)
	}
	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestRedisTodoLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t)
	jane := mustCreateUser(t, s, "jane")

	todo := &models.Todo{Title: "Buy milk", Description: "2 liters", UserID: jane.ID, Username: jane.Username}
	if err := s.CreateTodo(ctx, todo); err != nil {
		t.Fatalf("CreateTodo: %v", err)
	}
	if todo.ID == 0 || todo.CreatedAt.IsZero() {
		t.Fatalf("CreateTodo did not assign id/time: %+v", todo)
	}

	updated, err := s.UpdateTodo(ctx, todo.ID, "Buy oat milk", "1 liter")
	if err != nil {
		t.Fatalf("UpdateTodo: %v", err)
	}
	if updated.Title != "Buy oat milk" || updated.UserID != jane.ID || updated.Username != "jane" {
		t.Fatalf("UpdateTodo = %+v", updated)
	}

	if err := s.DeleteTodo(ctx, todo.ID); err != nil {
		t.Fatalf("DeleteTodo: %v", err)
	}
	if _, err := s.GetTodo(ctx, todo.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetTodo after delete: err = %v", err)
	}
	if _, err := s.UpdateTodo(ctx, todo.ID, "x", "y"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateTodo after delete: err = %v", err)
	}
	if err := s.DeleteTodo(ctx, todo.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteTodo twice: err = %v", err)
	}
	_, total, err := s.ListTodosByOwner(ctx, jane.ID, models.PageRequest{Size: 10})
	if err != nil || total != 0 {
		t.Fatalf("owner index after delete: total = %d, err = %v", total, err)
	}
}

func TestRedisListPagination(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t)
	jane := mustCreateUser(t, s, "jane")
	john := mustCreateUser(t, s, "john")

	for i := 0; i < 5; i++ {
		for _, u := range []*models.User{jane, john} {
			todo := &models.Todo{Title: fmt.Sprintf("%s %d", u.Username, i), Description: "desc", UserID: u.ID, Username: u.Username}
			if err := s.CreateTodo(ctx, todo); err != nil {
				t.Fatalf("CreateTodo: %v", err)
			}
		}
	}

	all, total, err := s.ListTodos(ctx, models.PageRequest{Page: 0, Size: 4, Desc: true})
	if err != nil {
		t.Fatalf("ListTodos: %v", err)
	}
	if total != 10 || len(all) != 4 {
		t.Fatalf("ListTodos: total = %d, len = %d", total, len(all))
	}
	if all[0].ID != 10 || all[3].ID != 7 {
		t.Fatalf("ListTodos desc order: first %d last %d", all[0].ID, all[3].ID)
	}

	mine, total, err := s.ListTodosByOwner(ctx, jane.ID, models.PageRequest{Page: 1, Size: 2})
	if err != nil {
		t.Fatalf("ListTodosByOwner: %v", err)
	}
	if total != 5 || len(mine) != 2 {
		t.Fatalf("ListTodosByOwner: total = %d, len = %d", total, len(mine))
	}
	for _, todo := range mine {
		if todo.UserID != jane.ID {
			t.Fatalf("ListTodosByOwner returned %+v owned by %d", todo, todo.UserID)
		}
	}
	if mine[0].ID >= mine[1].ID {
		t.Fatalf("ascending order broken: %d then %d", mine[0].ID, mine[1].ID)
	}

	past, total, err := s.ListTodosByOwner(ctx, jane.ID, models.PageRequest{Page: 9, Size: 2})
	if err != nil || total != 5 || len(past) != 0 {
		t.Fatalf("page past end: len = %d, total = %d, err = %v", len(past), total, err)
	}
}

func TestRedisCreateTodoRequiresOwner(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t)
	jane := mustCreateUser(t, s, "jane")

	orphan := &models.Todo{Title: "Ghost", Description: "No owner", UserID: jane.ID + 100, Username: "ghost"}
	if err := s.CreateTodo(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CreateTodo for missing owner: err = %v, want ErrNotFound", err)
	}
	if orphan.ID != 0 {
		t.Fatalf("orphan got id %d", orphan.ID)
	}
	if _, total, err := s.ListTodos(ctx, models.PageRequest{Size: 10}); err != nil || total != 0 {
		t.Fatalf("index after rejected create: total = %d, err = %v", total, err)
	}

	todo := &models.Todo{Title: "Buy milk", Description: "2 liters", UserID: jane.ID, Username: jane.Username}
	if err := s.CreateTodo(ctx, todo); err != nil {
		t.Fatalf("CreateTodo for jane: %v", err)
	}
	got, err := s.GetTodo(ctx, todo.ID)
	if err != nil || got.UserID != jane.ID || got.Title != "Buy milk" {
		t.Fatalf("GetTodo = %+v, %v", got, err)
	}
}
