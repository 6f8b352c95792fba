package peer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/registry"
)

type customer struct {
	ID       string `json:"id"`
	Nachname string `json:"nachname"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPClient_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "p" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/kunde/1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"1","nachname":"Alpha"}`))
		case "/kunde/500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient[customer](HTTPConfig{
		App:        "kunde",
		PathPrefix: "kunde",
		Username:   "admin",
		Password:   "p",
	}, registry.StaticResolver{"kunde": server.URL}, server.Client())

	t.Run("decodes a found resource", func(t *testing.T) {
		got, err := client.Call(context.Background(), "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Nachname != "Alpha" {
			t.Errorf("expected Alpha, got %s", got.Nachname)
		}
	})

	t.Run("maps 404 to not found", func(t *testing.T) {
		if _, err := client.Call(context.Background(), "2"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("reports server errors", func(t *testing.T) {
		_, err := client.Call(context.Background(), "500")
		if err == nil || errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected a plain error, got %v", err)
		}
	})

	t.Run("fails when the peer cannot be resolved", func(t *testing.T) {
		unresolved := NewClient[customer](HTTPConfig{App: "kunde"}, registry.StaticResolver{}, server.Client())
		if _, err := unresolved.Call(context.Background(), "1"); !errors.Is(err, registry.ErrNoInstances) {
			t.Errorf("expected ErrNoInstances, got %v", err)
		}
	})
}

type scriptedPeer struct {
	calls int
	err   error
	value customer
}

func (s *scriptedPeer) Call(context.Context, string) (customer, error) {
	s.calls++
	return s.value, s.err
}

func sentinel(context.Context, string, error) customer {
	return customer{ID: "unavailable"}
}

func newResilient(next PeerClient[customer], retries uint64) *Resilient[customer] {
	return NewResilient[customer](next, ResilienceConfig{
		Name:             "kunde",
		MaxRetries:       retries,
		InitialInterval:  time.Millisecond,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	}, sentinel, discardLogger())
}

func TestResilient_Call(t *testing.T) {
	ctx := context.Background()

	t.Run("passes successful results through", func(t *testing.T) {
		next := &scriptedPeer{value: customer{ID: "1", Nachname: "Alpha"}}
		got, err := newResilient(next, 2).Call(ctx, "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Nachname != "Alpha" || next.calls != 1 {
			t.Errorf("unexpected result %+v after %d calls", got, next.calls)
		}
	})

	t.Run("does not retry or fall back on not found", func(t *testing.T) {
		next := &scriptedPeer{err: domain.ErrNotFound}
		_, err := newResilient(next, 2).Call(ctx, "1")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if next.calls != 1 {
			t.Errorf("expected 1 call, got %d", next.calls)
		}
	})

	t.Run("retries then falls back", func(t *testing.T) {
		next := &scriptedPeer{err: errors.New("connection refused")}
		got, err := newResilient(next, 2).Call(ctx, "1")
		if !errors.Is(err, domain.ErrPeerUnavailable) {
			t.Errorf("expected ErrPeerUnavailable, got %v", err)
		}
		if got.ID != "unavailable" {
			t.Errorf("expected fallback value, got %+v", got)
		}
		if next.calls != 3 {
			t.Errorf("expected 3 attempts, got %d", next.calls)
		}
	})

	t.Run("open breaker skips the peer", func(t *testing.T) {
		next := &scriptedPeer{err: errors.New("timeout")}
		r := newResilient(next, 0)

		for range 2 {
			_, _ = r.Call(ctx, "1")
		}
		before := next.calls

		got, err := r.Call(ctx, "1")
		if !errors.Is(err, domain.ErrPeerUnavailable) {
			t.Errorf("expected ErrPeerUnavailable, got %v", err)
		}
		if got.ID != "unavailable" {
			t.Errorf("expected fallback value, got %+v", got)
		}
		if next.calls != before {
			t.Errorf("expected open breaker to skip the peer, got %d extra calls", next.calls-before)
		}
	})
}

type hangingPeer struct {
	calls int
}

func (h *hangingPeer) Call(ctx context.Context, _ string) (customer, error) {
	h.calls++
	<-ctx.Done()
	return customer{}, ctx.Err()
}

func TestResilient_CallTimeout(t *testing.T) {
	next := &hangingPeer{}
	r := NewResilient[customer](next, ResilienceConfig{
		Name:            "kunde",
		MaxRetries:      5,
		InitialInterval: time.Millisecond,
		Timeout:         50 * time.Millisecond,
	}, sentinel, discardLogger())

	start := time.Now()
	got, err := r.Call(context.Background(), "1")
	elapsed := time.Since(start)

	if !errors.Is(err, domain.ErrPeerUnavailable) {
		t.Errorf("expected ErrPeerUnavailable, got %v", err)
	}
	if got.ID != "unavailable" {
		t.Errorf("expected fallback value, got %+v", got)
	}
	if elapsed > 2*time.Second {
		t.Errorf("expected the call budget to end retries, took %v", elapsed)
	}
	if next.calls != 1 {
		t.Errorf("expected the first attempt to use the whole budget, got %d attempts", next.calls)
	}
}

func TestNewHTTPClient_Timeouts(t *testing.T) {
	c := NewHTTPClient(0, 0)
	if c.Timeout != DefaultConnectTimeout+DefaultReadTimeout {
		t.Errorf("unexpected overall timeout %s", c.Timeout)
	}
}
