package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/todo-auth/internal/auth"
	"github.com/ayush/todo-auth/internal/config"
	"github.com/ayush/todo-auth/internal/server"
	"github.com/ayush/todo-auth/internal/store"
	"github.com/ayush/todo-auth/internal/todo"
	"github.com/ayush/todo-auth/internal/validation"
)

// backend is what every store implementation provides.
type backend interface {
	auth.UserStore
	todo.Store
	Ping(ctx context.Context) error
}

type migrator interface {
	Migrate(ctx context.Context) error
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $CONFIG_FILE)")
	port := flag.String("port", "", "listen port, overrides PORT")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := run(cfg); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	st, closeStore, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if m, ok := st.(migrator); ok {
		if err := m.Migrate(ctx); err != nil {
			return fmt.Errorf("%s migrate: %w", cfg.StoreBackend, err)
		}
	}
	slog.Info("store ready", "backend", cfg.StoreBackend)

	key, err := cfg.SigningKey()
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenCodec(key, cfg.TokenTTL())
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(st, tokens, cfg.BcryptCost)
	if err != nil {
		return err
	}
	validate, err := validation.New(cfg.EmailDomain)
	if err != nil {
		return err
	}

	if cfg.Admin.Enabled() {
		created, err := authSvc.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		slog.Info("bootstrap admin", "username", cfg.Admin.Username, "created", created)
	}

	handler := server.NewRouter(server.Deps{
		Auth:           auth.NewHandler(authSvc, validate),
		Todos:          todo.NewHandler(todo.NewService(st), validate),
		Tokens:         tokens,
		Users:          authSvc,
		Health:         st,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestLog:     true,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// openBackend connects the configured store and returns a close func.
func openBackend(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := store.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		return store.NewPostgresStore(pool), pool.Close, nil

	case config.BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		closeFn := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Disconnect(dctx)
		}
		st := store.NewMongoStore(client.Database(cfg.MongoDB))
		if err := st.Ping(ctx); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		return st, closeFn, nil

	case config.BackendRedis:
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("redis connect: %w", err)
		}
		return store.NewRedisStore(rdb), func() { rdb.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
