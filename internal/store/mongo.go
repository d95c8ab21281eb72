package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/todo-auth/internal/models"
)

type mongoUser struct {
	ID        int64     `bson:"_id"`
	Username  string    `bson:"username"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"created_at"`
}

type mongoTodo struct {
	ID          int64     `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	UserID      int64     `bson:"user_id"`
	Username    string    `bson:"username"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d mongoTodo) model() models.Todo {
	return models.Todo{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		UserID:      d.UserID,
		Username:    d.Username,
		CreatedAt:   d.CreatedAt,
	}
}

// MongoStore handles user and todo CRUD in MongoDB. Numeric ids come from
// a counters collection so they match the other backends.
type MongoStore struct {
	db       *mongo.Database
	users    *mongo.Collection
	todos    *mongo.Collection
	counters *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:       db,
		users:    db.Collection("users"),
		todos:    db.Collection("todos"),
		counters: db.Collection("counters"),
	}
}

// Migrate creates the unique and listing indexes.
func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("username_unique")},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("email_unique")},
	})
	if err != nil {
		return fmt.Errorf("mongo user indexes: %w", err)
	}
	_, err = s.todos.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo todo indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *MongoStore) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("mongo next %s id: %w", name, err)
	}
	return counter.Seq, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	id, err := s.nextID(ctx, "users")
	if err != nil {
		return err
	}
	doc := mongoUser{
		ID:        id,
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.Password,
		Role:      u.Role.String(),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "email_unique") {
				return fmt.Errorf("create user: %w", ErrDuplicateEmail)
			}
			return fmt.Errorf("create user: %w", ErrDuplicateUsername)
		}
		return fmt.Errorf("mongo insert user: %w", err)
	}
	u.ID = doc.ID
	u.CreatedAt = doc.CreatedAt
	return nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc mongoUser
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	role, err := models.ParseRole(doc.Role)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", doc.ID, err)
	}
	return &models.User{
		ID:        doc.ID,
		Username:  doc.Username,
		Email:     doc.Email,
		Password:  doc.Password,
		Role:      role,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	return n > 0, err
}

func (s *MongoStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	return n > 0, err
}

// CreateTodo refuses owners that do not exist. Mongo has no foreign keys,
// so an owner removed after this check can still leave an orphan.
func (s *MongoStore) CreateTodo(ctx context.Context, t *models.Todo) error {
	n, err := s.users.CountDocuments(ctx, bson.M{"_id": t.UserID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("mongo todo owner: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("create todo owner %d: %w", t.UserID, ErrNotFound)
	}
	id, err := s.nextID(ctx, "todos")
	if err != nil {
		return err
	}
	doc := mongoTodo{
		ID:          id,
		Title:       t.Title,
		Description: t.Description,
		UserID:      t.UserID,
		Username:    t.Username,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := s.todos.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo insert todo: %w", err)
	}
	t.ID = doc.ID
	t.CreatedAt = doc.CreatedAt
	return nil
}

func (s *MongoStore) GetTodo(ctx context.Context, id int64) (*models.Todo, error) {
	var doc mongoTodo
	if err := s.todos.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t := doc.model()
	return &t, nil
}

func (s *MongoStore) UpdateTodo(ctx context.Context, id int64, title, description string) (*models.Todo, error) {
	var doc mongoTodo
	err := s.todos.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"title": title, "description": description}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t := doc.model()
	return &t, nil
}

func (s *MongoStore) DeleteTodo(ctx context.Context, id int64) error {
	res, err := s.todos.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListTodos(ctx context.Context, page models.PageRequest) ([]models.Todo, int64, error) {
	return s.listTodos(ctx, bson.M{}, page)
}

func (s *MongoStore) ListTodosByOwner(ctx context.Context, ownerID int64, page models.PageRequest) ([]models.Todo, int64, error) {
	return s.listTodos(ctx, bson.M{"user_id": ownerID}, page)
}

func (s *MongoStore) listTodos(ctx context.Context, filter bson.M, page models.PageRequest) ([]models.Todo, int64, error) {
	total, err := s.todos.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	dir := 1
	if page.Desc {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: dir}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))
	cur, err := s.todos.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var docs []mongoTodo
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	items := make([]models.Todo, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.model())
	}
	return items, total, nil
}
