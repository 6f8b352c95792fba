package configserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/joao-fontenele/shopflow/internal/auth"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/validation"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memoryStore struct {
	mu    sync.Mutex
	props map[sourceKey]map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{props: make(map[sourceKey]map[string]string)}
}

func (m *memoryStore) Load(_ context.Context, app, profile string) (map[string]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.props[sourceKey{app, profile}]
	if !ok || len(p) == 0 {
		return nil, false, nil
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out, true, nil
}

func (m *memoryStore) Merge(_ context.Context, app, profile string, props map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sourceKey{app, profile}
	if m.props[key] == nil {
		m.props[key] = make(map[string]string)
	}
	for k, v := range props {
		m.props[key][k] = v
	}
	return nil
}

func (m *memoryStore) Delete(_ context.Context, app, profile, k string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.props[sourceKey{app, profile}]
	if _, ok := p[k]; !ok {
		return false, nil
	}
	delete(p, k)
	return true, nil
}

func (m *memoryStore) Ping(context.Context) error { return nil }

func seeded(t *testing.T) *memoryStore {
	t.Helper()
	s := newMemoryStore()
	ctx := context.Background()
	_ = s.Merge(ctx, "application", "default", map[string]string{"log.level": "info", "cache.ttl": "10m"})
	_ = s.Merge(ctx, "application", "dev", map[string]string{"log.level": "debug"})
	_ = s.Merge(ctx, "kunde", "default", map[string]string{"mongo.database": "kunde"})
	_ = s.Merge(ctx, "kunde", "dev", map[string]string{"mongo.database": "kunde_dev"})
	return s
}

func TestSourceKeys(t *testing.T) {
	names := func(keys []sourceKey) []string {
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = k.name()
		}
		return out
	}

	tests := []struct {
		app, profiles string
		want          []string
	}{
		{"kunde", "dev", []string{"kunde-dev", "kunde", "application-dev", "application"}},
		{"kunde", "default", []string{"kunde", "application"}},
		{"kunde", "dev,local", []string{"kunde-local", "kunde-dev", "kunde", "application-local", "application-dev", "application"}},
		{"application", "dev", []string{"application-dev", "application"}},
	}
	for _, tt := range tests {
		t.Run(tt.app+"/"+tt.profiles, func(t *testing.T) {
			if got := names(sourceKeys(tt.app, tt.profiles)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestService_Environment(t *testing.T) {
	svc := NewService(seeded(t), discardLogger())
	ctx := context.Background()

	t.Run("most specific first", func(t *testing.T) {
		env, err := svc.Environment(ctx, "kunde", "dev")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got []string
		for _, ps := range env.PropertySources {
			got = append(got, ps.Name)
		}
		want := []string{"kunde-dev", "kunde", "application-dev", "application"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}

		flat := env.Flatten()
		if flat["mongo.database"] != "kunde_dev" || flat["log.level"] != "debug" || flat["cache.ttl"] != "10m" {
			t.Errorf("unexpected flattened view %v", flat)
		}
	})

	t.Run("missing sources are skipped", func(t *testing.T) {
		env, err := svc.Environment(ctx, "bestellung", "default")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(env.PropertySources) != 1 || env.PropertySources[0].Name != "application" {
			t.Errorf("unexpected sources %+v", env.PropertySources)
		}
	})

	t.Run("nothing matches", func(t *testing.T) {
		empty := NewService(newMemoryStore(), discardLogger())
		if _, err := empty.Environment(ctx, "kunde", "dev"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("rejects path-like names", func(t *testing.T) {
		var v *validation.Violations
		if _, err := svc.Environment(ctx, "../etc", "dev"); !errors.As(err, &v) {
			t.Errorf("expected violations, got %v", err)
		}
	})
}

func TestService_MergeAndDelete(t *testing.T) {
	store := seeded(t)
	svc := NewService(store, discardLogger())
	ctx := context.Background()

	if err := svc.Merge(ctx, "kunde", "dev", map[string]string{"cache.ttl": "1m"}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	props, _, _ := store.Load(ctx, "kunde", "dev")
	if props["cache.ttl"] != "1m" || props["mongo.database"] != "kunde_dev" {
		t.Errorf("merge should keep existing keys, got %v", props)
	}

	var v *validation.Violations
	if err := svc.Merge(ctx, "kunde", "dev", nil); !errors.As(err, &v) {
		t.Errorf("expected violations for empty merge, got %v", err)
	}

	if err := svc.Delete(ctx, "kunde", "dev", "cache.ttl"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, "kunde", "dev", "cache.ttl"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("kunde.toml", "[mongo]\nuri = \"mongodb://mongo:27017\"\npool_size = 20\n")
	write("kunde-dev.toml", "seed = true\ntags = [\"a\", \"b\"]\n")
	write("broken-dev.toml", "this is not toml")

	store := NewFileStore(dir)
	ctx := context.Background()

	t.Run("nested tables become dotted keys", func(t *testing.T) {
		props, found, err := store.Load(ctx, "kunde", "default")
		if err != nil || !found {
			t.Fatalf("expected props, got found=%v err=%v", found, err)
		}
		if props["mongo.uri"] != "mongodb://mongo:27017" || props["mongo.pool_size"] != "20" {
			t.Errorf("unexpected props %v", props)
		}
	})

	t.Run("profile file", func(t *testing.T) {
		props, _, _ := store.Load(ctx, "kunde", "dev")
		if props["seed"] != "true" || props["tags"] != "a,b" {
			t.Errorf("unexpected props %v", props)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, found, err := store.Load(ctx, "bestellung", "default")
		if err != nil || found {
			t.Errorf("expected not found, got found=%v err=%v", found, err)
		}
	})

	t.Run("broken file", func(t *testing.T) {
		if _, _, err := store.Load(ctx, "broken", "dev"); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("read only", func(t *testing.T) {
		if err := store.Merge(ctx, "kunde", "dev", map[string]string{"a": "b"}); !errors.Is(err, ErrReadOnly) {
			t.Errorf("expected ErrReadOnly, got %v", err)
		}
	})

	t.Run("applications", func(t *testing.T) {
		apps, err := store.Applications()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(apps, []string{"broken", "kunde"}) {
			t.Errorf("unexpected apps %v", apps)
		}
	})
}

func newTestMux(t *testing.T, store Store) *http.ServeMux {
	t.Helper()
	static, err := auth.NewStatic(domain.Account{Username: "admin", Password: "p", Rollen: []string{domain.RoleAdmin}})
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	NewHandler(NewService(store, discardLogger()), auth.NewGuard(static, Realm, discardLogger()), discardLogger()).Register(mux)
	return mux
}

func TestHandler(t *testing.T) {
	mux := newTestMux(t, seeded(t))

	t.Run("get environment", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/kunde/dev", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var env Environment
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatal(err)
		}
		if env.Name != "kunde" || len(env.PropertySources) != 4 || env.Profiles[0] != "dev" {
			t.Errorf("unexpected environment %+v", env)
		}
	})

	t.Run("unknown application", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope/dev", nil))
		// application-dev still matches
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("put requires credentials", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/kunde/dev", strings.NewReader(`{"a":"b"}`)))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") != `Basic realm="CONFIG"` {
			t.Errorf("unexpected challenge %q", rec.Header().Get("WWW-Authenticate"))
		}
	})

	t.Run("put and delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/bestellung/dev", strings.NewReader(`{"kunde.username":"admin"}`))
		req.SetBasicAuth("admin", "p")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}

		req = httptest.NewRequest(http.MethodDelete, "/bestellung/dev/kunde.username", nil)
		req.SetBasicAuth("admin", "p")
		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}

		req = httptest.NewRequest(http.MethodDelete, "/bestellung/dev/kunde.username", nil)
		req.SetBasicAuth("admin", "p")
		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("read only backend", func(t *testing.T) {
		fileMux := newTestMux(t, NewFileStore(t.TempDir()))
		req := httptest.NewRequest(http.MethodPut, "/kunde/dev", strings.NewReader(`{"a":"b"}`))
		req.SetBasicAuth("admin", "p")
		rec := httptest.NewRecorder()
		fileMux.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(newTestMux(t, seeded(t)))
	defer server.Close()

	c := NewClient(server.URL+"/", server.Client())
	env, err := c.Fetch(context.Background(), "kunde", "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Flatten()["mongo.database"] != "kunde_dev" {
		t.Errorf("unexpected environment %+v", env)
	}

	empty := httptest.NewServer(newTestMux(t, newMemoryStore()))
	defer empty.Close()
	if _, err := NewClient(empty.URL, empty.Client()).Fetch(context.Background(), "kunde", "dev"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
