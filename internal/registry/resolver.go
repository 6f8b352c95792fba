package registry

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Resolver maps an application name to the base URL of one live instance.
type Resolver interface {
	Resolve(ctx context.Context, app string) (string, error)
}

// StaticResolver serves fixed URLs, for running without a registry.
type StaticResolver map[string]string

func (s StaticResolver) Resolve(_ context.Context, app string) (string, error) {
	u, ok := s[appKey(app)]
	if !ok || u == "" {
		return "", ErrNoInstances
	}
	return u, nil
}

type instanceLister interface {
	Instances(ctx context.Context, app string) ([]Instance, error)
}

type cachedApp struct {
	instances []Instance
	fetched   time.Time
	next      int
}

// DiscoveryResolver picks instances round-robin from a short-lived local
// copy of the registry's view.
type DiscoveryResolver struct {
	lister  instanceLister
	refresh time.Duration
	now     func() time.Time

	mu   sync.Mutex
	apps map[string]*cachedApp
}

func NewDiscoveryResolver(lister instanceLister, refresh time.Duration) *DiscoveryResolver {
	return &DiscoveryResolver{
		lister:  lister,
		refresh: refresh,
		now:     time.Now,
		apps:    make(map[string]*cachedApp),
	}
}

func (d *DiscoveryResolver) Resolve(ctx context.Context, app string) (string, error) {
	key := appKey(app)

	d.mu.Lock()
	cached, ok := d.apps[key]
	stale := !ok || d.now().Sub(cached.fetched) >= d.refresh
	d.mu.Unlock()

	if stale {
		instances, err := d.lister.Instances(ctx, key)
		if err != nil {
			return "", err
		}
		d.mu.Lock()
		if cached == nil {
			cached = &cachedApp{}
			d.apps[key] = cached
		}
		cached.instances = instances
		cached.fetched = d.now()
		d.mu.Unlock()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(cached.instances) == 0 {
		return "", ErrNoInstances
	}
	inst := cached.instances[cached.next%len(cached.instances)]
	cached.next++
	return strings.TrimSuffix(inst.BaseURL(), "/"), nil
}
