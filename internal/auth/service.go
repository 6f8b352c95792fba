// Package auth implements BASIC authentication against bcrypt-hashed
// accounts and role checks for HTTP handlers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type Principal struct {
	Username string
	Roles    []string
}

// HasAnyRole reports whether the principal holds at least one of roles.
// An empty list is satisfied by any principal.
func (p *Principal) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

// Authorities renders roles the way clients expect them, e.g. ROLE_ADMIN.
func (p *Principal) Authorities() []string {
	out := make([]string, len(p.Roles))
	for i, r := range p.Roles {
		out[i] = "ROLE_" + strings.ToUpper(r)
	}
	return out
}

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Principal, error)
}

type Service struct {
	store  AccountStore
	cost   int
	logger *slog.Logger
}

func NewService(store AccountStore, logger *slog.Logger) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost, logger: logger}
}

// Save hashes the password and stores a new account.
func (s *Service) Save(ctx context.Context, acc *domain.Account) error {
	if acc == nil || strings.TrimSpace(acc.Username) == "" || acc.Password == "" {
		return domain.ErrInvalidAccount
	}

	existing, err := s.store.FindByUsername(ctx, acc.Username)
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}
	if existing != nil {
		return domain.ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(acc.Password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	acc.Password = string(hash)

	if err := s.store.Insert(ctx, acc); err != nil {
		return err
	}
	s.logger.Info("account created", "username", acc.Username, "roles", acc.Rollen)
	return nil
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (*Principal, error) {
	acc, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if acc == nil {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.Password), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}
	return &Principal{Username: acc.Username, Roles: acc.Rollen}, nil
}

// HashPassword is used by the admin CLI to prepare seeded accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Static authenticates against a fixed set of users, for services that
// have no account store of their own.
type Static struct {
	users map[string]domain.Account
}

// NewStatic hashes the given plain-text passwords once at construction.
func NewStatic(accounts ...domain.Account) (*Static, error) {
	users := make(map[string]domain.Account, len(accounts))
	for _, acc := range accounts {
		hash, err := HashPassword(acc.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password of %s: %w", acc.Username, err)
		}
		acc.Password = hash
		users[acc.Username] = acc
	}
	return &Static{users: users}, nil
}

func (s *Static) Authenticate(_ context.Context, username, password string) (*Principal, error) {
	acc, ok := s.users[username]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.Password), []byte(password)) != nil {
		return nil, domain.ErrUnauthorized
	}
	return &Principal{Username: acc.Username, Roles: acc.Rollen}, nil
}
