// Package registry is a small service registry: instances register under an
// application name, renew their lease periodically and are evicted when
// they stop renewing.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	StatusUp = "UP"

	DefaultLeaseDuration    = 90 * time.Second
	DefaultEvictionInterval = 60 * time.Second
	DefaultRenewalInterval  = 30 * time.Second
)

type Instance struct {
	ID             string            `json:"instanceId"`
	App            string            `json:"app"`
	Host           string            `json:"host"`
	Port           int               `json:"port"`
	Scheme         string            `json:"scheme,omitempty"`
	HealthCheckURL string            `json:"healthCheckUrl,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Status         string            `json:"status"`
	RegisteredAt   time.Time         `json:"registeredAt"`
	LastRenewal    time.Time         `json:"lastRenewal"`
}

func (i Instance) BaseURL() string {
	scheme := i.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, i.Host, i.Port)
}

// Registry keeps leases in memory. Application names are case-insensitive.
type Registry struct {
	mu     sync.RWMutex
	apps   map[string]map[string]*Instance
	lease  time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func New(lease time.Duration, logger *slog.Logger) *Registry {
	if lease <= 0 {
		lease = DefaultLeaseDuration
	}
	return &Registry{
		apps:   make(map[string]map[string]*Instance),
		lease:  lease,
		now:    time.Now,
		logger: logger,
	}
}

func appKey(app string) string {
	return strings.ToLower(strings.TrimSpace(app))
}

// Register adds or replaces an instance and starts its lease.
func (r *Registry) Register(app string, inst Instance) Instance {
	key := appKey(app)
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	now := r.now()
	inst.App = key
	inst.Status = StatusUp
	inst.RegisteredAt = now
	inst.LastRenewal = now

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.apps[key] == nil {
		r.apps[key] = make(map[string]*Instance)
	}
	stored := inst
	r.apps[key][inst.ID] = &stored

	r.logger.Info("instance registered", "app", key, "instance_id", inst.ID, "url", inst.BaseURL())
	return inst
}

// Renew extends the lease. It reports false for unknown instances.
func (r *Registry) Renew(app, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.apps[appKey(app)][id]
	if !ok {
		return false
	}
	inst.LastRenewal = r.now()
	return true
}

func (r *Registry) Cancel(app, id string) bool {
	key := appKey(app)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.apps[key][id]; !ok {
		return false
	}
	delete(r.apps[key], id)
	if len(r.apps[key]) == 0 {
		delete(r.apps, key)
	}
	r.logger.Info("instance cancelled", "app", key, "instance_id", id)
	return true
}

// Instances returns the live instances of app ordered by id.
func (r *Registry) Instances(app string) []Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live(r.apps[appKey(app)])
}

func (r *Registry) Apps() map[string][]Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]Instance, len(r.apps))
	for name, instances := range r.apps {
		if live := r.live(instances); len(live) > 0 {
			out[name] = live
		}
	}
	return out
}

func (r *Registry) live(instances map[string]*Instance) []Instance {
	cutoff := r.now().Add(-r.lease)
	out := make([]Instance, 0, len(instances))
	for _, id := range slices.Sorted(maps.Keys(instances)) {
		inst := instances[id]
		if inst.LastRenewal.After(cutoff) {
			out = append(out, *inst)
		}
	}
	return out
}

// Evict drops every instance whose lease has expired and returns how many.
func (r *Registry) Evict() int {
	cutoff := r.now().Add(-r.lease)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for name, instances := range r.apps {
		for id, inst := range instances {
			if !inst.LastRenewal.After(cutoff) {
				delete(instances, id)
				evicted++
				r.logger.Info("instance evicted", "app", name, "instance_id", id, "last_renewal", inst.LastRenewal)
			}
		}
		if len(instances) == 0 {
			delete(r.apps, name)
		}
	}
	return evicted
}

// RunEvictor evicts expired leases every interval until ctx is done.
func (r *Registry) RunEvictor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultEvictionInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict()
		}
	}
}
