package auth

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joao-fontenele/shopflow/internal/docstore"
	"github.com/joao-fontenele/shopflow/internal/domain"
)

type AccountStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	Insert(ctx context.Context, acc *domain.Account) error
}

type MongoAccountStore struct {
	coll *docstore.Collection[domain.Account]
}

func NewMongoAccountStore(db *mongo.Database) *MongoAccountStore {
	return &MongoAccountStore{coll: docstore.NewCollection[domain.Account](db, "account")}
}

func (s *MongoAccountStore) EnsureIndexes(ctx context.Context) error {
	return s.coll.EnsureIndexes(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
}

func (s *MongoAccountStore) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return s.coll.FindOne(ctx, bson.D{{Key: "username", Value: username}})
}

func (s *MongoAccountStore) Insert(ctx context.Context, acc *domain.Account) error {
	id, err := s.coll.Insert(ctx, acc)
	var dup *docstore.DuplicateKeyError
	if errors.As(err, &dup) {
		return domain.ErrUsernameExists
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if oid, ok := id.(primitive.ObjectID); ok {
		acc.ID = oid
	}
	return nil
}
