package kunde

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Media is an open multimedia file of a customer. Callers must Close it.
type Media struct {
	io.ReadCloser
	ContentType string
	Length      int64
}

// MediaStore keeps at most one file per name.
type MediaStore interface {
	Save(ctx context.Context, name string, r io.Reader, contentType string) error
	Open(ctx context.Context, name string) (*Media, error)
}

type GridFSMediaStore struct {
	bucket *gridfs.Bucket
}

func NewGridFSMediaStore(db *mongo.Database) (*GridFSMediaStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName("media"))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return &GridFSMediaStore{bucket: bucket}, nil
}

// Save replaces any file stored under name.
func (s *GridFSMediaStore) Save(ctx context.Context, name string, r io.Reader, contentType string) error {
	if err := s.deleteAll(ctx, name); err != nil {
		return err
	}

	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	if _, err := s.bucket.UploadFromStream(name, r, opts); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

func (s *GridFSMediaStore) deleteAll(ctx context.Context, name string) error {
	cursor, err := s.bucket.FindContext(ctx, bson.D{{Key: "filename", Value: name}})
	if err != nil {
		return fmt.Errorf("find media %s: %w", name, err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	for cursor.Next(ctx) {
		var file struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&file); err != nil {
			return fmt.Errorf("decode media %s: %w", name, err)
		}
		if err := s.bucket.DeleteContext(ctx, file.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("delete media %s: %w", name, err)
		}
	}
	return cursor.Err()
}

// Open answers nil, nil when no file is stored under name.
func (s *GridFSMediaStore) Open(_ context.Context, name string) (*Media, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(name)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open media %s: %w", name, err)
	}

	file := stream.GetFile()
	contentType := "application/octet-stream"
	if len(file.Metadata) > 0 {
		if v, err := file.Metadata.LookupErr("contentType"); err == nil {
			if ct, ok := v.StringValueOK(); ok && ct != "" {
				contentType = ct
			}
		}
	}

	return &Media{ReadCloser: stream, ContentType: contentType, Length: file.Length}, nil
}
