// Package cache provides the keyed read cache used in front of by-id lookups.
package cache

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache is a keyed store of values. Implementations must be safe for
// concurrent use.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V) error
	// Add stores value only when key is absent and reports whether it did.
	Add(ctx context.Context, key string, value V) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Aside applies the cache-aside pattern over a Cache: reads load on miss,
// updates overwrite the entry, deletes evict it.
type Aside[V any] struct {
	cache  Cache[V]
	name   string
	logger *slog.Logger
	hits   metric.Int64Counter
	misses metric.Int64Counter
}

func NewAside[V any](c Cache[V], name string, logger *slog.Logger) *Aside[V] {
	meter := otel.Meter("shopflow/cache")
	hits, _ := meter.Int64Counter("cache.hits", metric.WithDescription("cache-aside hits"))
	misses, _ := meter.Int64Counter("cache.misses", metric.WithDescription("cache-aside misses"))

	return &Aside[V]{
		cache:  c,
		name:   name,
		logger: logger,
		hits:   hits,
		misses: misses,
	}
}

// GetOrLoad returns the cached value for key or calls load and caches its
// result. A nil result from load is not cached. A loaded value never replaces
// an entry written while it was loading; that entry is returned instead.
func (a *Aside[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (*V, error)) (*V, error) {
	attrs := metric.WithAttributes(attribute.String("cache", a.name))

	v, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn("cache read failed", "cache", a.name, "key", key, "error", err)
	}
	if ok {
		a.hits.Add(ctx, 1, attrs)
		return &v, nil
	}
	a.misses.Add(ctx, 1, attrs)

	loaded, err := load(ctx)
	if err != nil || loaded == nil {
		return loaded, err
	}

	added, err := a.cache.Add(ctx, key, *loaded)
	if err != nil {
		a.logger.Warn("cache write failed", "cache", a.name, "key", key, "error", err)
		return loaded, nil
	}
	if !added {
		if v, ok, err := a.cache.Get(ctx, key); err == nil && ok {
			return &v, nil
		}
	}
	return loaded, nil
}

func (a *Aside[V]) Put(ctx context.Context, key string, value V) {
	if err := a.cache.Set(ctx, key, value); err != nil {
		a.logger.Warn("cache write failed", "cache", a.name, "key", key, "error", err)
	}
}

func (a *Aside[V]) Evict(ctx context.Context, key string) {
	if err := a.cache.Delete(ctx, key); err != nil {
		a.logger.Warn("cache evict failed", "cache", a.name, "key", key, "error", err)
	}
}
