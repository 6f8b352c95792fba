package kunde

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

const collectionName = "kunde"

// Filter holds the query parameters of a customer search. Zero values are
// not applied; Email, when set, takes precedence over everything else.
type Filter struct {
	Email      string
	Nachname   string
	Plz        string
	Ort        string
	Newsletter *bool
	Geschlecht domain.Geschlecht
}

func (f Filter) empty() bool {
	return f == Filter{}
}

// Repository reads and writes customers. Lookups answer nil, nil when
// nothing matches.
type Repository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Kunde, error)
	FindByEmail(ctx context.Context, email string) (*domain.Kunde, error)
	Find(ctx context.Context, f Filter) ([]domain.Kunde, error)
	NachnamenByPrefix(ctx context.Context, prefix string) ([]string, error)
	EmailsByPrefix(ctx context.Context, prefix string) ([]string, error)
	Insert(ctx context.Context, k *domain.Kunde) error
	Replace(ctx context.Context, k *domain.Kunde, expectedVersion int) (bool, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type MongoRepository struct {
	coll *docstore.Collection[domain.Kunde]
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: docstore.NewCollection[domain.Kunde](db, collectionName)}
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	return r.coll.EnsureIndexes(ctx,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		mongo.IndexModel{Keys: bson.D{{Key: "nachname", Value: 1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "adresse.plz", Value: 1}}},
	)
}

func (r *MongoRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Kunde, error) {
	return r.coll.FindByID(ctx, id)
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*domain.Kunde, error) {
	return r.coll.FindOne(ctx, bson.D{{Key: "email", Value: docstore.EqualIgnoreCase(email)}})
}

func (r *MongoRepository) Find(ctx context.Context, f Filter) ([]domain.Kunde, error) {
	if f.Email != "" {
		k, err := r.FindByEmail(ctx, f.Email)
		if err != nil || k == nil {
			return nil, err
		}
		return []domain.Kunde{*k}, nil
	}

	return r.coll.Find(ctx, filterDocument(f), options.Find().SetSort(bson.D{{Key: "nachname", Value: 1}}))
}

func filterDocument(f Filter) bson.D {
	doc := bson.D{}
	if f.Nachname != "" {
		doc = append(doc, bson.E{Key: "nachname", Value: docstore.ContainsIgnoreCase(f.Nachname)})
	}
	if f.Plz != "" {
		doc = append(doc, bson.E{Key: "adresse.plz", Value: f.Plz})
	}
	if f.Ort != "" {
		doc = append(doc, bson.E{Key: "adresse.ort", Value: f.Ort})
	}
	if f.Newsletter != nil {
		doc = append(doc, bson.E{Key: "newsletter", Value: *f.Newsletter})
	}
	if f.Geschlecht != "" {
		doc = append(doc, bson.E{Key: "geschlecht", Value: f.Geschlecht})
	}
	return doc
}

func (r *MongoRepository) NachnamenByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.coll.DistinctStrings(ctx, "nachname", bson.D{{Key: "nachname", Value: docstore.PrefixIgnoreCase(prefix)}})
}

func (r *MongoRepository) EmailsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.coll.DistinctStrings(ctx, "email", bson.D{{Key: "email", Value: docstore.PrefixIgnoreCase(prefix)}})
}

func (r *MongoRepository) Insert(ctx context.Context, k *domain.Kunde) error {
	id, err := r.coll.Insert(ctx, k)
	var dup *docstore.DuplicateKeyError
	if errors.As(err, &dup) {
		return domain.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert kunde: %w", err)
	}
	if oid, ok := id.(primitive.ObjectID); ok {
		k.ID = oid
	}
	return nil
}

func (r *MongoRepository) Replace(ctx context.Context, k *domain.Kunde, expectedVersion int) (bool, error) {
	ok, err := r.coll.Replace(ctx, k.ID, expectedVersion, k)
	var dup *docstore.DuplicateKeyError
	if errors.As(err, &dup) {
		return false, domain.ErrDuplicateEmail
	}
	return ok, err
}

func (r *MongoRepository) DeleteByID(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return r.coll.DeleteByID(ctx, id)
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.coll.Count(ctx, nil)
}
