package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayush/todo-auth/internal/models"
)

// Key layout:
//
//	user:seq                  INCR counter for user ids
//	user:{id}                 hash of user fields
//	user:username:{username}  -> id (SETNX claim, enforces uniqueness)
//	user:email:{email}        -> id (SETNX claim)
//	todo:seq                  INCR counter for todo ids
//	todo:{id}                 hash of todo fields
//	todos:all                 zset of todo ids scored by id
//	todos:owner:{userID}      zset of the owner's todo ids scored by id
const (
	keyUserSeq        = "user:seq"
	keyTodoSeq        = "todo:seq"
	keyTodosAll       = "todos:all"
	keyTodosOwnerBase = "todos:owner:"
)

func userKey(id int64) string            { return "user:" + strconv.FormatInt(id, 10) }
func usernameKey(username string) string { return "user:username:" + username }
func emailKey(email string) string       { return "user:email:" + email }
func todoKey(id int64) string            { return "todo:" + strconv.FormatInt(id, 10) }
func ownerKey(userID int64) string       { return keyTodosOwnerBase + strconv.FormatInt(userID, 10) }

var createTodoScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[2], 'id', ARGV[1], 'title', ARGV[2], 'description', ARGV[3],
  'user_id', ARGV[4], 'username', ARGV[5], 'created_at', ARGV[6])
redis.call('ZADD', KEYS[3], ARGV[1], ARGV[1])
redis.call('ZADD', KEYS[4], ARGV[1], ARGV[1])
return 1
`)

var updateTodoScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'title', ARGV[1], 'description', ARGV[2])
return 1
`)

var deleteTodoScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], 'user_id')
if not owner then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('ZREM', ARGV[2] .. owner, ARGV[1])
return 1
`)

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// RedisStore keeps users and todos in Redis hashes with sorted-set indexes.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// CreateUser claims the username, then the email, with SETNX so that two
// concurrent signups for the same name cannot both succeed.
func (s *RedisStore) CreateUser(ctx context.Context, u *models.User) error {
	id, err := s.rdb.Incr(ctx, keyUserSeq).Result()
	if err != nil {
		return fmt.Errorf("redis user id: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, usernameKey(u.Username), id, 0).Result()
	if err != nil {
		return fmt.Errorf("redis claim username: %w", err)
	}
	if !ok {
		return fmt.Errorf("create user: %w", ErrDuplicateUsername)
	}
	ok, err = s.rdb.SetNX(ctx, emailKey(u.Email), id, 0).Result()
	if err != nil || !ok {
		s.rdb.Del(ctx, usernameKey(u.Username))
		if err != nil {
			return fmt.Errorf("redis claim email: %w", err)
		}
		return fmt.Errorf("create user: %w", ErrDuplicateEmail)
	}

	created := time.Now().UTC()
	err = s.rdb.HSet(ctx, userKey(id), map[string]any{
		"id":         id,
		"username":   u.Username,
		"email":      u.Email,
		"password":   u.Password,
		"role":       u.Role.String(),
		"created_at": created.Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		s.rdb.Del(ctx, usernameKey(u.Username), emailKey(u.Email))
		return fmt.Errorf("redis save user: %w", err)
	}
	u.ID = id
	u.CreatedAt = created
	return nil
}

func (s *RedisStore) userByIndex(ctx context.Context, indexKey string) (*models.User, error) {
	id, err := s.rdb.Get(ctx, indexKey).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	fields, err := s.rdb.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		// Index claimed but the record is not written yet.
		return nil, ErrNotFound
	}
	return parseUser(fields)
}

func parseUser(f map[string]string) (*models.User, error) {
	id, err := strconv.ParseInt(f["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis user id %q: %w", f["id"], err)
	}
	role, err := models.ParseRole(f["role"])
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", id, err)
	}
	created, _ := time.Parse(time.RFC3339Nano, f["created_at"])
	return &models.User{
		ID:        id,
		Username:  f["username"],
		Email:     f["email"],
		Password:  f["password"],
		Role:      role,
		CreatedAt: created,
	}, nil
}

func (s *RedisStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userByIndex(ctx, usernameKey(username))
}

func (s *RedisStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.userByIndex(ctx, emailKey(email))
}

func (s *RedisStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	n, err := s.rdb.Exists(ctx, usernameKey(username)).Result()
	return n > 0, err
}

func (s *RedisStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := s.rdb.Exists(ctx, emailKey(email)).Result()
	return n > 0, err
}

// CreateTodo writes the todo and its index entries only if the owner's
// record exists.
func (s *RedisStore) CreateTodo(ctx context.Context, t *models.Todo) error {
	id, err := s.rdb.Incr(ctx, keyTodoSeq).Result()
	if err != nil {
		return fmt.Errorf("redis todo id: %w", err)
	}
	created := time.Now().UTC()
	n, err := createTodoScript.Run(ctx, s.rdb,
		[]string{userKey(t.UserID), todoKey(id), keyTodosAll, ownerKey(t.UserID)},
		id, t.Title, t.Description, t.UserID, t.Username, created.Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("redis save todo: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("create todo owner %d: %w", t.UserID, ErrNotFound)
	}
	t.ID = id
	t.CreatedAt = created
	return nil
}

func parseTodo(f map[string]string) (*models.Todo, error) {
	id, err := strconv.ParseInt(f["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis todo id %q: %w", f["id"], err)
	}
	owner, err := strconv.ParseInt(f["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("todo %d owner %q: %w", id, f["user_id"], err)
	}
	created, _ := time.Parse(time.RFC3339Nano, f["created_at"])
	return &models.Todo{
		ID:          id,
		Title:       f["title"],
		Description: f["description"],
		UserID:      owner,
		Username:    f["username"],
		CreatedAt:   created,
	}, nil
}

func (s *RedisStore) GetTodo(ctx context.Context, id int64) (*models.Todo, error) {
	fields, err := s.rdb.HGetAll(ctx, todoKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return parseTodo(fields)
}

func (s *RedisStore) UpdateTodo(ctx context.Context, id int64, title, description string) (*models.Todo, error) {
	n, err := updateTodoScript.Run(ctx, s.rdb, []string{todoKey(id)}, title, description).Int()
	if err != nil {
		return nil, fmt.Errorf("redis update todo: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetTodo(ctx, id)
}

func (s *RedisStore) DeleteTodo(ctx context.Context, id int64) error {
	n, err := deleteTodoScript.Run(ctx, s.rdb,
		[]string{todoKey(id), keyTodosAll}, id, keyTodosOwnerBase).Int()
	if err != nil {
		return fmt.Errorf("redis delete todo: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) ListTodos(ctx context.Context, page models.PageRequest) ([]models.Todo, int64, error) {
	return s.listTodos(ctx, keyTodosAll, page)
}

func (s *RedisStore) ListTodosByOwner(ctx context.Context, ownerID int64, page models.PageRequest) ([]models.Todo, int64, error) {
	return s.listTodos(ctx, ownerKey(ownerID), page)
}

func (s *RedisStore) listTodos(ctx context.Context, index string, page models.PageRequest) ([]models.Todo, int64, error) {
	total, err := s.rdb.ZCard(ctx, index).Result()
	if err != nil {
		return nil, 0, err
	}
	start := int64(page.Offset())
	stop := start + int64(page.Size) - 1
	if start >= total {
		return []models.Todo{}, total, nil
	}

	var ids []string
	if page.Desc {
		ids, err = s.rdb.ZRevRange(ctx, index, start, stop).Result()
	} else {
		ids, err = s.rdb.ZRange(ctx, index, start, stop).Result()
	}
	if err != nil {
		return nil, 0, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, "todo:"+id)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	items := make([]models.Todo, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Deleted between the range read and the fetch.
			continue
		}
		t, err := parseTodo(fields)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *t)
	}
	return items, total, nil
}
