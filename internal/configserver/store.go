package configserver

import (
	"context"
	"errors"
)

// ErrReadOnly is returned by backends that cannot be written over HTTP.
var ErrReadOnly = errors.New("config backend is read-only")

// Store holds the properties of one (application, profile) pair.
type Store interface {
	// Load reports found=false when the pair has no properties at all.
	Load(ctx context.Context, application, profile string) (props map[string]string, found bool, err error)
	Merge(ctx context.Context, application, profile string, props map[string]string) error
	Delete(ctx context.Context, application, profile, key string) (bool, error)
	Ping(ctx context.Context) error
}
