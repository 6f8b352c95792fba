package kunde

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/joao-fontenele/shopflow/internal/cache"
	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/validation"
)

type memoryRepository struct {
	mu     sync.Mutex
	kunden map[primitive.ObjectID]domain.Kunde
	loads  int
	// afterFind runs after FindByID has read its result.
	afterFind func()
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{kunden: map[primitive.ObjectID]domain.Kunde{}}
}

func (m *memoryRepository) FindByID(_ context.Context, id primitive.ObjectID) (*domain.Kunde, error) {
	m.mu.Lock()
	m.loads++
	k, ok := m.kunden[id]
	hook := m.afterFind
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return nil, nil
	}
	return k.Clone(), nil
}

func (m *memoryRepository) FindByEmail(_ context.Context, email string) (*domain.Kunde, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.kunden {
		if strings.EqualFold(k.Email, email) {
			return k.Clone(), nil
		}
	}
	return nil, nil
}

func (m *memoryRepository) Find(ctx context.Context, f Filter) ([]domain.Kunde, error) {
	if f.Email != "" {
		k, err := m.FindByEmail(ctx, f.Email)
		if k == nil {
			return nil, err
		}
		return []domain.Kunde{*k}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Kunde
	for _, k := range m.kunden {
		if f.Nachname != "" && !strings.Contains(strings.ToLower(k.Nachname), strings.ToLower(f.Nachname)) {
			continue
		}
		if f.Plz != "" && (k.Adresse == nil || k.Adresse.Plz != f.Plz) {
			continue
		}
		if f.Ort != "" && (k.Adresse == nil || k.Adresse.Ort != f.Ort) {
			continue
		}
		if f.Newsletter != nil && k.Newsletter != *f.Newsletter {
			continue
		}
		if f.Geschlecht != "" && k.Geschlecht != f.Geschlecht {
			continue
		}
		out = append(out, *k.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Kunde) int { return strings.Compare(a.Email, b.Email) })
	return out, nil
}

func (m *memoryRepository) distinct(prefix string, field func(domain.Kunde) string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, k := range m.kunden {
		v := field(k)
		if strings.HasPrefix(strings.ToLower(v), strings.ToLower(prefix)) && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

func (m *memoryRepository) NachnamenByPrefix(_ context.Context, prefix string) ([]string, error) {
	return m.distinct(prefix, func(k domain.Kunde) string { return k.Nachname }), nil
}

func (m *memoryRepository) EmailsByPrefix(_ context.Context, prefix string) ([]string, error) {
	return m.distinct(prefix, func(k domain.Kunde) string { return k.Email }), nil
}

func (m *memoryRepository) Insert(_ context.Context, k *domain.Kunde) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.kunden {
		if strings.EqualFold(other.Email, k.Email) {
			return domain.ErrDuplicateEmail
		}
	}
	if k.ID.IsZero() {
		k.ID = primitive.NewObjectID()
	}
	m.kunden[k.ID] = *k.Clone()
	return nil
}

func (m *memoryRepository) Replace(_ context.Context, k *domain.Kunde, expectedVersion int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.kunden[k.ID]
	if !ok || stored.Version != expectedVersion {
		return false, nil
	}
	m.kunden[k.ID] = *k.Clone()
	return true, nil
}

func (m *memoryRepository) DeleteByID(_ context.Context, id primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.kunden[id]
	delete(m.kunden, id)
	return ok, nil
}

func (m *memoryRepository) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.kunden)), nil
}

type memoryMedia struct {
	mu    sync.Mutex
	files map[string]memoryFile
}

type memoryFile struct {
	data        []byte
	contentType string
}

func newMemoryMedia() *memoryMedia {
	return &memoryMedia{files: map[string]memoryFile{}}
}

func (m *memoryMedia) Save(_ context.Context, name string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = memoryFile{data: data, contentType: contentType}
	return nil
}

func (m *memoryMedia) Open(_ context.Context, name string) (*Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[name]
	if !ok {
		return nil, nil
	}
	return &Media{
		ReadCloser:  io.NopCloser(bytes.NewReader(f.data)),
		ContentType: f.contentType,
		Length:      int64(len(f.data)),
	}, nil
}

type recordingAccounts struct {
	mu       sync.Mutex
	accounts []domain.Account
}

func (r *recordingAccounts) Save(_ context.Context, acc *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == acc.Username {
			return domain.ErrUsernameExists
		}
	}
	r.accounts = append(r.accounts, *acc)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	svc       *Service
	repo      *memoryRepository
	media     *memoryMedia
	accounts  *recordingAccounts
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	v, err := validation.New()
	if err != nil {
		t.Fatalf("validation.New: %v", err)
	}
	f := &fixture{
		repo:      newMemoryRepository(),
		media:     newMemoryMedia(),
		accounts:  &recordingAccounts{},
		publisher: &recordingPublisher{},
	}
	aside := cache.NewAside[domain.Kunde](cache.NewMemory[domain.Kunde](), "kunde", discardLogger())
	f.svc = NewService(f.repo, f.media, f.accounts, aside, v, f.publisher, discardLogger())
	return f
}

func newKunde(nachname, email string) *domain.Kunde {
	return &domain.Kunde{
		Nachname:   nachname,
		Email:      email,
		Newsletter: true,
		Geschlecht: domain.Weiblich,
		Adresse:    &domain.Adresse{Plz: "76133", Ort: "Karlsruhe"},
		Account:    &domain.Account{Username: strings.ToLower(nachname), Password: "p"},
	}
}

// stored inserts a customer directly, bypassing the service.
func (f *fixture) stored(t *testing.T, nachname, email string) *domain.Kunde {
	t.Helper()
	k := newKunde(nachname, email)
	k.Account = nil
	if err := f.repo.Insert(context.Background(), k); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return k
}
