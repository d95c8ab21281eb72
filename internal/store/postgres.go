package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/todo-auth/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGSERIAL    PRIMARY KEY,
		username   VARCHAR(50)  NOT NULL,
		email      VARCHAR(120) NOT NULL,
		password   VARCHAR(120) NOT NULL,
		role       VARCHAR(20)  NOT NULL,
		created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		CONSTRAINT users_username_key UNIQUE (username),
		CONSTRAINT users_email_key    UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS todos (
		id          BIGSERIAL    PRIMARY KEY,
		title       VARCHAR(50)  NOT NULL,
		description VARCHAR(255) NOT NULL,
		user_id     BIGINT       NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS todos_user_id_idx ON todos (user_id, id)`,
}

// PostgresStore handles user and todo CRUD against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool with small-service limits and checks connectivity.
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the users and todos tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range pgSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// classifyPgError maps constraint violations onto the store sentinels.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case "users_username_key":
			return fmt.Errorf("%w: %s", ErrDuplicateUsername, pgErr.Detail)
		case "users_email_key":
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, pgErr.Detail)
		}
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Detail)
	}
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		u.Username, u.Email, u.Password, u.Role.String(),
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", classifyPgError(err))
	}
	return nil
}

func (s *PostgresStore) getUser(ctx context.Context, column, value string) (*models.User, error) {
	// column is one of two literals chosen below, never user input.
	q := `SELECT id, username, email, password, role, created_at FROM users WHERE ` + column + ` = $1`
	var (
		u    models.User
		role string
	)
	err := s.pool.QueryRow(ctx, q, value).Scan(&u.ID, &u.Username, &u.Email, &u.Password, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.Role, err = models.ParseRole(role); err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *PostgresStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&ok)
	return ok, err
}

func (s *PostgresStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&ok)
	return ok, err
}

func (s *PostgresStore) CreateTodo(ctx context.Context, t *models.Todo) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO todos (title, description, user_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		t.Title, t.Description, t.UserID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create todo: %w", classifyPgError(err))
	}
	return nil
}

const todoColumns = `t.id, t.title, t.description, t.user_id, u.username, t.created_at`

func scanTodo(row pgx.Row) (*models.Todo, error) {
	var t models.Todo
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.UserID, &t.Username, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) GetTodo(ctx context.Context, id int64) (*models.Todo, error) {
	t, err := scanTodo(s.pool.QueryRow(ctx,
		`SELECT `+todoColumns+` FROM todos t JOIN users u ON u.id = t.user_id WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *PostgresStore) UpdateTodo(ctx context.Context, id int64, title, description string) (*models.Todo, error) {
	t, err := scanTodo(s.pool.QueryRow(ctx,
		`WITH t AS (
			UPDATE todos SET title = $2, description = $3 WHERE id = $1
			RETURNING id, title, description, user_id, created_at
		 )
		 SELECT `+todoColumns+` FROM t JOIN users u ON u.id = t.user_id`,
		id, title, description))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *PostgresStore) DeleteTodo(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListTodos(ctx context.Context, page models.PageRequest) ([]models.Todo, int64, error) {
	return s.listTodos(ctx, page, "", nil)
}

func (s *PostgresStore) ListTodosByOwner(ctx context.Context, ownerID int64, page models.PageRequest) ([]models.Todo, int64, error) {
	return s.listTodos(ctx, page, "WHERE t.user_id = $1", []any{ownerID})
}

func (s *PostgresStore) listTodos(ctx context.Context, page models.PageRequest, where string, args []any) ([]models.Todo, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM todos t `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "ASC"
	if page.Desc {
		order = "DESC"
	}
	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM todos t JOIN users u ON u.id = t.user_id %s
		ORDER BY t.id %s LIMIT $%d OFFSET $%d`, todoColumns, where, order, n+1, n+2)
	rows, err := s.pool.Query(ctx, q, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]models.Todo, 0, page.Size)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *t)
	}
	return items, total, rows.Err()
}
