package kunde

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/patch"
	"github.com/joao-fontenele/shopflow/internal/validation"
)

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores customer, account and event", func(t *testing.T) {
		f := newFixture(t)
		k, err := f.svc.Create(ctx, newKunde("Neu", "Neu@Example.COM"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if k.ID.IsZero() {
			t.Error("expected generated id")
		}
		if k.Email != "neu@example.com" {
			t.Errorf("expected normalized email, got %s", k.Email)
		}
		if k.Version != 0 || k.Username != "neu" || k.Account != nil {
			t.Errorf("unexpected stored customer %+v", k)
		}
		if len(f.accounts.accounts) != 1 || f.accounts.accounts[0].Rollen[0] != domain.RoleKunde {
			t.Errorf("expected one kunde account, got %+v", f.accounts.accounts)
		}
		if len(f.publisher.events) != 1 {
			t.Fatalf("expected one event, got %d", len(f.publisher.events))
		}
		event := f.publisher.events[0].(domain.NeuerKundeEvent)
		if event.KundeID != k.ID.Hex() || event.Email != k.Email {
			t.Errorf("unexpected event %+v", event)
		}
	})

	t.Run("requires an account", func(t *testing.T) {
		f := newFixture(t)
		k := newKunde("Neu", "neu@example.com")
		k.Account = nil
		if _, err := f.svc.Create(ctx, k); !errors.Is(err, domain.ErrInvalidAccount) {
			t.Errorf("expected ErrInvalidAccount, got %v", err)
		}
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		f := newFixture(t)
		f.stored(t, "Alt", "dup@example.com")
		if _, err := f.svc.Create(ctx, newKunde("Neu", "DUP@example.com")); !errors.Is(err, domain.ErrDuplicateEmail) {
			t.Errorf("expected ErrDuplicateEmail, got %v", err)
		}
	})

	t.Run("reports every violation", func(t *testing.T) {
		f := newFixture(t)
		k := newKunde("klein", "not-an-email")
		k.Adresse.Plz = "1"
		_, err := f.svc.Create(ctx, k)
		var violations *validation.Violations
		if !errors.As(err, &violations) {
			t.Fatalf("expected violations, got %v", err)
		}
		if len(violations.Messages) != 3 {
			t.Errorf("expected 3 violations, got %v", violations.Messages)
		}
	})

	t.Run("publish failure does not fail creation", func(t *testing.T) {
		f := newFixture(t)
		f.publisher.err = errors.New("broker down")
		if _, err := f.svc.Create(ctx, newKunde("Neu", "neu@example.com")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestService_FindByID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	k := f.stored(t, "Alpha", "alpha@example.com")

	t.Run("malformed id is not found", func(t *testing.T) {
		if _, err := f.svc.FindByID(ctx, "xyz"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("second read is served from cache", func(t *testing.T) {
		before := f.repo.loads
		for range 2 {
			got, err := f.svc.FindByID(ctx, k.ID.Hex())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Nachname != "Alpha" {
				t.Errorf("expected Alpha, got %s", got.Nachname)
			}
		}
		if f.repo.loads-before != 1 {
			t.Errorf("expected one repository load, got %d", f.repo.loads-before)
		}
	})

	t.Run("returned value does not alias the cache", func(t *testing.T) {
		got, _ := f.svc.FindByID(ctx, k.ID.Hex())
		got.AddInteresse(domain.Reisen)
		again, _ := f.svc.FindByID(ctx, k.ID.Hex())
		if again.HasInteresse(domain.Reisen) {
			t.Error("cached customer was modified through a returned value")
		}
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("requires If-Match", func(t *testing.T) {
		f := newFixture(t)
		k := f.stored(t, "Alpha", "alpha@example.com")
		if _, err := f.svc.Update(ctx, k, ""); !errors.Is(err, domain.ErrPreconditionRequired) {
			t.Errorf("expected ErrPreconditionRequired, got %v", err)
		}
	})

	t.Run("bumps the version and refreshes the cache", func(t *testing.T) {
		f := newFixture(t)
		k := f.stored(t, "Alpha", "alpha@example.com")
		_, _ = f.svc.FindByID(ctx, k.ID.Hex())

		change := k.Clone()
		change.Nachname = "Beta"
		updated, err := f.svc.Update(ctx, change, `"0"`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Version != 1 {
			t.Errorf("expected version 1, got %d", updated.Version)
		}

		got, _ := f.svc.FindByID(ctx, k.ID.Hex())
		if got.Nachname != "Beta" || got.Version != 1 {
			t.Errorf("expected cached update, got %+v", got)
		}
	})

	t.Run("rejects an outdated version", func(t *testing.T) {
		f := newFixture(t)
		k := f.stored(t, "Alpha", "alpha@example.com")
		if _, err := f.svc.Update(ctx, k.Clone(), `"0"`); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := f.svc.Update(ctx, k.Clone(), `"0"`); !errors.Is(err, domain.ErrVersionConflict) {
			t.Errorf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("rejects an email owned by another customer", func(t *testing.T) {
		f := newFixture(t)
		k := f.stored(t, "Alpha", "alpha@example.com")
		f.stored(t, "Beta", "beta@example.com")

		change := k.Clone()
		change.Email = "beta@example.com"
		if _, err := f.svc.Update(ctx, change, `"0"`); !errors.Is(err, domain.ErrDuplicateEmail) {
			t.Errorf("expected ErrDuplicateEmail, got %v", err)
		}
	})

	t.Run("unknown customer", func(t *testing.T) {
		f := newFixture(t)
		k := newKunde("Alpha", "alpha@example.com")
		k.ID = [12]byte{1}
		if _, err := f.svc.Update(ctx, k, `"0"`); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestService_Patch(t *testing.T) {
	ctx := context.Background()

	t.Run("checks If-Match before loading", func(t *testing.T) {
		f := newFixture(t)
		k := f.stored(t, "Alpha", "alpha@example.com")
		before := f.repo.loads
		_, _, err := f.svc.Patch(ctx, k.ID.Hex(), "", nil)
		if !errors.Is(err, domain.ErrPreconditionRequired) {
			t.Errorf("expected ErrPreconditionRequired, got %v", err)
		}
		if f.repo.loads != before {
			t.Error("expected no repository access")
		}
	})

	t.Run("applies replaces, adds and removes", func(t *testing.T) {
		f := newFixture(t)
		k := f.stored(t, "Alpha", "alpha@example.com")
		ops := []patch.Operation{
			{Op: "remove", Path: "/interessen", Value: "S"},
			{Op: "add", Path: "/interessen", Value: "S"},
			{Op: "replace", Path: "/nachname", Value: "Gamma"},
			{Op: "replace", Path: "/email", Value: "GAMMA@example.com"},
			{Op: "copy", Path: "/nachname"},
		}

		updated, ignored, err := f.svc.Patch(ctx, k.ID.Hex(), `"0"`, ops)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Nachname != "Gamma" || updated.Email != "gamma@example.com" {
			t.Errorf("unexpected replaces %+v", updated)
		}
		if updated.HasInteresse(domain.Sport) {
			t.Error("expected remove to run after add")
		}
		if updated.Version != 1 {
			t.Errorf("expected version 1, got %d", updated.Version)
		}
		if len(ignored) != 1 || ignored[0].Op != "copy" {
			t.Errorf("expected the copy operation to be ignored, got %v", ignored)
		}
	})

	t.Run("unknown interests fail without writing", func(t *testing.T) {
		f := newFixture(t)
		k := f.stored(t, "Alpha", "alpha@example.com")
		ops := []patch.Operation{
			{Op: "add", Path: "/interessen", Value: "X"},
			{Op: "add", Path: "/interessen", Value: "Y"},
		}
		_, _, err := f.svc.Patch(ctx, k.ID.Hex(), `"0"`, ops)
		var violations *validation.Violations
		if !errors.As(err, &violations) {
			t.Fatalf("expected violations, got %v", err)
		}
		if !strings.Contains(violations.Error(), "X ist kein Interesse") || len(violations.Messages) != 2 {
			t.Errorf("unexpected messages %v", violations.Messages)
		}
		stored, _ := f.repo.FindByID(ctx, k.ID)
		if stored.Version != 0 {
			t.Errorf("expected stored version 0, got %d", stored.Version)
		}
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.stored(t, "Alpha", "alpha@example.com")
	b := f.stored(t, "Beta", "beta@example.com")
	_, _ = f.svc.FindByID(ctx, a.ID.Hex())

	if err := f.svc.DeleteByID(ctx, a.ID.Hex()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.FindByID(ctx, a.ID.Hex()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected evicted customer to be gone, got %v", err)
	}
	if err := f.svc.DeleteByID(ctx, a.ID.Hex()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	if err := f.svc.DeleteByEmail(ctx, "BETA@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.FindByID(ctx, b.ID.Hex()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected deleted customer, got %v", err)
	}
	if err := f.svc.DeleteByEmail(ctx, "nobody@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_FindByNachnameAsync(t *testing.T) {
	f := newFixture(t)
	f.stored(t, "Alpha", "a1@example.com")
	f.stored(t, "Alphabet", "a2@example.com")
	f.stored(t, "Beta", "b@example.com")

	res, ok := <-f.svc.FindByNachnameAsync(context.Background(), "alpha")
	if !ok {
		t.Fatal("expected a result")
	}
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Kunden) != 2 {
		t.Errorf("expected 2 customers, got %d", len(res.Kunden))
	}
}

func TestService_Media(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	k := f.stored(t, "Alpha", "alpha@example.com")

	if err := f.svc.SaveMedia(ctx, "000000000000000000000099", strings.NewReader("x"), "image/png"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown customer, got %v", err)
	}
	if _, err := f.svc.FindMedia(ctx, k.ID.Hex()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound before upload, got %v", err)
	}

	if err := f.svc.SaveMedia(ctx, k.ID.Hex(), strings.NewReader("png-bytes"), "image/png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, err := f.svc.FindMedia(ctx, k.ID.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = m.Close() }()
	if m.ContentType != "image/png" || m.Length != int64(len("png-bytes")) {
		t.Errorf("unexpected media %+v", m)
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n, err := Seed(ctx, f.repo, f.accounts, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	samples, _ := SampleKunden()
	if n != len(samples) {
		t.Errorf("expected %d seeded, got %d", len(samples), n)
	}
	if len(f.accounts.accounts) != len(samples) {
		t.Errorf("expected one account per sample, got %d", len(f.accounts.accounts))
	}

	again, err := Seed(ctx, f.repo, f.accounts, discardLogger())
	if err != nil || again != 0 {
		t.Errorf("expected second seed to be skipped, got %d, %v", again, err)
	}
}

func TestService_FindByIDDuringUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	k := f.stored(t, "Alpha", "alpha@example.com")
	id := k.ID.Hex()

	loaded := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f.repo.mu.Lock()
	f.repo.afterFind = func() {
		if calls.Add(1) == 1 {
			close(loaded)
			<-release
		}
	}
	f.repo.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.svc.FindByID(ctx, id)
	}()

	<-loaded
	change := k.Clone()
	change.Nachname = "Beta"
	if _, err := f.svc.Update(ctx, change, `"0"`); err != nil {
		t.Fatalf("update: %v", err)
	}
	close(release)
	<-done

	got, err := f.svc.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Nachname != "Beta" || got.Version != 1 {
		t.Errorf("expected Beta at version 1, got %s at version %d", got.Nachname, got.Version)
	}
}

func TestService_InteressenAreASet(t *testing.T) {
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		f := newFixture(t)
		k := newKunde("Neu", "neu@example.com")
		k.Interessen = []domain.Interesse{domain.Sport, domain.Lesen, domain.Sport}

		created, err := f.svc.Create(ctx, k)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		stored, _ := f.repo.FindByID(ctx, created.ID)
		if !slices.Equal(stored.Interessen, []domain.Interesse{domain.Sport, domain.Lesen}) {
			t.Errorf("expected [S L], got %v", stored.Interessen)
		}
	})

	t.Run("update", func(t *testing.T) {
		f := newFixture(t)
		k := f.stored(t, "Alpha", "alpha@example.com")

		var change domain.Kunde
		body := `{"nachname":"Alpha","email":"alpha@example.com","adresse":{"plz":"76133","ort":"Karlsruhe"},"interessen":["S","s","SPORT"]}`
		if err := json.Unmarshal([]byte(body), &change); err != nil {
			t.Fatal(err)
		}
		change.ID = k.ID

		if _, err := f.svc.Update(ctx, &change, `"0"`); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		stored, _ := f.repo.FindByID(ctx, k.ID)
		if !slices.Equal(stored.Interessen, []domain.Interesse{domain.Sport}) {
			t.Errorf("expected [S], got %v", stored.Interessen)
		}
	})
}
