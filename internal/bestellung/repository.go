package bestellung

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joao-fontenele/shopflow/internal/docstore"
	"github.com/joao-fontenele/shopflow/internal/domain"
)

// Repository stores orders. FindByID answers nil, nil when nothing matches.
type Repository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Bestellung, error)
	FindByKundeID(ctx context.Context, kundeID string) ([]domain.Bestellung, error)
	Insert(ctx context.Context, b *domain.Bestellung) error
	Count(ctx context.Context) (int64, error)
}

type MongoRepository struct {
	coll *docstore.Collection[domain.Bestellung]
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: docstore.NewCollection[domain.Bestellung](db, "bestellung")}
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	return r.coll.EnsureIndexes(ctx, mongo.IndexModel{Keys: bson.D{{Key: "kundeId", Value: 1}}})
}

func (r *MongoRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Bestellung, error) {
	return r.coll.FindByID(ctx, id)
}

// FindByKundeID returns every order when kundeID is empty.
func (r *MongoRepository) FindByKundeID(ctx context.Context, kundeID string) ([]domain.Bestellung, error) {
	filter := bson.D{}
	if kundeID != "" {
		filter = bson.D{{Key: "kundeId", Value: kundeID}}
	}
	return r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "datum", Value: -1}}))
}

func (r *MongoRepository) Insert(ctx context.Context, b *domain.Bestellung) error {
	id, err := r.coll.Insert(ctx, b)
	if err != nil {
		return fmt.Errorf("insert bestellung: %w", err)
	}
	if oid, ok := id.(primitive.ObjectID); ok {
		b.ID = oid
	}
	return nil
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.coll.Count(ctx, nil)
}
