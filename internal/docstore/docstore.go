// Package docstore is a thin adapter over MongoDB: connection handling and a
// typed collection with the handful of operations the services need.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultPoolSize = 10

type Options struct {
	URI      string
	Database string
	PoolSize uint64
	Monitor  *event.CommandMonitor
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a pooled client and verifies it with a ping.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	if opts.PoolSize == 0 {
		opts.PoolSize = DefaultPoolSize
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetMaxPoolSize(opts.PoolSize).
		SetRegistry(newRegistry())
	if opts.Monitor != nil {
		clientOpts.SetMonitor(opts.Monitor)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Store{client: client, db: client.Database(opts.Database)}, nil
}

func (s *Store) Database() *mongo.Database {
	return s.db
}

// Named returns another database on the same client.
func (s *Store) Named(name string) *mongo.Database {
	return s.client.Database(name)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Collection is a typed view of a MongoDB collection whose documents carry
// an integer "version" field.
type Collection[T any] struct {
	coll *mongo.Collection
}

func NewCollection[T any](db *mongo.Database, name string) *Collection[T] {
	return &Collection[T]{coll: db.Collection(name)}
}

// FindByID returns nil, nil when no document has the id.
func (c *Collection[T]) FindByID(ctx context.Context, id any) (*T, error) {
	return c.FindOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (c *Collection[T]) FindOne(ctx context.Context, filter any) (*T, error) {
	var doc T
	err := c.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find one in %s: %w", c.coll.Name(), err)
	}
	return &doc, nil
}

func (c *Collection[T]) Find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]T, error) {
	if filter == nil {
		filter = bson.D{}
	}
	cursor, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.coll.Name(), err)
	}
	var docs []T
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.coll.Name(), err)
	}
	return docs, nil
}

// Insert stores doc and returns the generated id.
func (c *Collection[T]) Insert(ctx context.Context, doc *T) (any, error) {
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &DuplicateKeyError{Collection: c.coll.Name(), Err: err}
		}
		return nil, fmt.Errorf("insert into %s: %w", c.coll.Name(), err)
	}
	return res.InsertedID, nil
}

// Replace overwrites the document with id only while its stored version is
// still expectedVersion. It reports false when nothing matched.
func (c *Collection[T]) Replace(ctx context.Context, id any, expectedVersion int, doc *T) (bool, error) {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "version", Value: expectedVersion}}
	res, err := c.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, &DuplicateKeyError{Collection: c.coll.Name(), Err: err}
		}
		return false, fmt.Errorf("replace in %s: %w", c.coll.Name(), err)
	}
	return res.MatchedCount == 1, nil
}

func (c *Collection[T]) DeleteByID(ctx context.Context, id any) (bool, error) {
	return c.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (c *Collection[T]) DeleteOne(ctx context.Context, filter any) (bool, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("delete from %s: %w", c.coll.Name(), err)
	}
	return res.DeletedCount == 1, nil
}

// DistinctStrings returns the distinct string values of field among matching documents.
func (c *Collection[T]) DistinctStrings(ctx context.Context, field string, filter any) ([]string, error) {
	if filter == nil {
		filter = bson.D{}
	}
	values, err := c.coll.Distinct(ctx, field, filter)
	if err != nil {
		return nil, fmt.Errorf("distinct %s in %s: %w", field, c.coll.Name(), err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *Collection[T]) Count(ctx context.Context, filter any) (int64, error) {
	if filter == nil {
		filter = bson.D{}
	}
	return c.coll.CountDocuments(ctx, filter)
}

func (c *Collection[T]) EnsureIndexes(ctx context.Context, indexes ...mongo.IndexModel) error {
	if len(indexes) == 0 {
		return nil
	}
	if _, err := c.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes on %s: %w", c.coll.Name(), err)
	}
	return nil
}

type DuplicateKeyError struct {
	Collection string
	Err        error
}

func (e *DuplicateKeyError) Error() string {
	return "duplicate key in " + e.Collection + ": " + e.Err.Error()
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

// ContainsIgnoreCase matches values containing s, case-insensitively.
func ContainsIgnoreCase(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

// PrefixIgnoreCase matches values starting with s, case-insensitively.
func PrefixIgnoreCase(s string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(s), "$options": "i"}
}

// EqualIgnoreCase matches values equal to s, case-insensitively.
func EqualIgnoreCase(s string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(s) + "$", "$options": "i"}
}
