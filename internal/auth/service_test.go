package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/todo-auth/internal/apperr"
	"github.com/ayush/todo-auth/internal/models"
	"github.com/ayush/todo-auth/internal/store"
)

func newService(t *testing.T) (*Service, *store.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	users := store.NewRedisStore(rdb)

	codec, err := NewTokenCodec(testKey, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	svc, err := NewService(users, codec, bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return svc, users
}

func wantKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != kind {
		t.Fatalf("err = %v, want kind %v", err, kind)
	}
	return ae
}

func TestRegisterDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, users := newService(t)

	if err := svc.Register(ctx, "jane", "jane@example.com", "P@ssw0rd1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	u, err := users.GetUserByUsername(ctx, "jane")
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != models.RoleUser {
		t.Fatalf("role = %v, want USER", u.Role)
	}
	if u.Password == "P@ssw0rd1" || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("P@ssw0rd1")) != nil {
		t.Fatal("password not stored as a bcrypt hash")
	}

	ae := wantKind(t, svc.Register(ctx, "jane", "fresh@example.com", "P@ssw0rd1"), apperr.KindDuplicate)
	if ae.Message != "Username taken" {
		t.Fatalf("message = %q", ae.Message)
	}
	ae = wantKind(t, svc.Register(ctx, "janet", "jane@example.com", "P@ssw0rd1"), apperr.KindDuplicate)
	if ae.Message != "Email jane@example.com in use" {
		t.Fatalf("message = %q", ae.Message)
	}
	// Both collide: the username is reported.
	ae = wantKind(t, svc.Register(ctx, "jane", "jane@example.com", "P@ssw0rd1"), apperr.KindDuplicate)
	if ae.Message != "Username taken" {
		t.Fatalf("message = %q", ae.Message)
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	if err := svc.Register(ctx, "jane", "jane@example.com", "P@ssw0rd1"); err != nil {
		t.Fatal(err)
	}

	for _, identifier := range []string{"jane", "jane@example.com"} {
		res, err := svc.Login(ctx, identifier, "P@ssw0rd1")
		if err != nil {
			t.Fatalf("Login(%s): %v", identifier, err)
		}
		if res.Token == "" || res.Username != "jane" {
			t.Fatalf("Login(%s) = %+v", identifier, res)
		}
		if len(res.Roles) != 1 || res.Roles[0] != "ROLE_USER" {
			t.Fatalf("roles = %v", res.Roles)
		}
		if !svc.tokens.Validate(res.Token) || svc.tokens.Subject(res.Token) != "jane" {
			t.Fatal("issued token does not validate")
		}
	}

	wrongPassword := wantKind(t, loginErr(svc, "jane", "Wr0ng@pass"), apperr.KindInvalidCredentials)
	unknownUser := wantKind(t, loginErr(svc, "ghost", "P@ssw0rd1"), apperr.KindInvalidCredentials)
	if wrongPassword.Message != unknownUser.Message {
		t.Fatalf("failures distinguishable: %q vs %q", wrongPassword.Message, unknownUser.Message)
	}
}

func loginErr(svc *Service, identifier, password string) error {
	_, err := svc.Login(context.Background(), identifier, password)
	return err
}

func TestLoadPrincipal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	if err := svc.Register(ctx, "jane", "jane@example.com", "P@ssw0rd1"); err != nil {
		t.Fatal(err)
	}
	p, err := svc.LoadPrincipal(ctx, "jane")
	if err != nil {
		t.Fatalf("LoadPrincipal: %v", err)
	}
	if p.Username != "jane" || p.Email != "jane@example.com" || !p.HasRole(models.RoleUser) {
		t.Fatalf("principal = %+v", p)
	}
	if _, err := svc.LoadPrincipal(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown user: err = %v", err)
	}
}

func TestEnsureAdminIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, users := newService(t)

	created, err := svc.EnsureAdmin(ctx, "root", "root@example.com", "R00t@pass")
	if err != nil || !created {
		t.Fatalf("first EnsureAdmin = %v, %v", created, err)
	}
	created, err = svc.EnsureAdmin(ctx, "root", "root@example.com", "R00t@pass")
	if err != nil || created {
		t.Fatalf("second EnsureAdmin = %v, %v", created, err)
	}
	u, err := users.GetUserByUsername(ctx, "root")
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != models.RoleAdmin {
		t.Fatalf("role = %v, want ADMIN", u.Role)
	}
}

// registerConcurrently runs n concurrent signups and returns the errors in call order.
func registerConcurrently(svc *Service, n int, username, email func(i int) string) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = svc.Register(context.Background(), username(i), email(i), "P@ssw0rd1")
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func TestConcurrentRegisterSingleWinner(t *testing.T) {
	const n = 20
	tests := []struct {
		name     string
		username func(i int) string
		email    func(i int) string
		msg      string
	}{
		{
			name:     "same username",
			username: func(int) string { return "jane" },
			email:    func(i int) string { return fmt.Sprintf("jane%d@example.com", i) },
			msg:      "Username taken",
		},
		{
			name:     "same email",
			username: func(i int) string { return fmt.Sprintf("jane%d", i) },
			email:    func(int) string { return "shared@example.com" },
			msg:      "Email shared@example.com in use",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newService(t)
			wins := 0
			for i, err := range registerConcurrently(svc, n, tc.username, tc.email) {
				if err == nil {
					wins++
					continue
				}
				var ae *apperr.Error
				if !errors.As(err, &ae) || ae.Kind != apperr.KindDuplicate || ae.Message != tc.msg {
					t.Fatalf("signup %d: err = %v, want duplicate %q", i, err, tc.msg)
				}
			}
			if wins != 1 {
				t.Fatalf("%d signups succeeded, want exactly 1", wins)
			}
		})
	}
}
