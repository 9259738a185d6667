// Package service holds infrastructure services that back domain ports.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/solvera/ojt-core/internal/domain/account"
	"github.com/solvera/ojt-core/internal/domain/shared"
)

// BcryptHasher implements account.PasswordHasher.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher. A cost outside bcrypt's range uses the default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", shared.NewDomainError("account", "Hash", shared.ErrEmptyValue, "password is required")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Compare returns shared.ErrUnauthorized when password does not match hash.
func (h *BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrHashTooShort):
		return shared.ErrUnauthorized
	default:
		return fmt.Errorf("compare password: %w", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// AUTHENTICATOR
// ═══════════════════════════════════════════════════════════════════════════

// Authenticator checks portal credentials.
type Authenticator struct {
	users  account.Repository
	hasher account.PasswordHasher
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users account.Repository, hasher account.PasswordHasher) *Authenticator {
	return &Authenticator{users: users, hasher: hasher}
}

// Authenticate returns the active user matching login and password. Unknown
// logins, inactive users and wrong passwords all yield shared.ErrUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, login, password string) (*account.User, error) {
	u, err := a.users.GetByLogin(ctx, login)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrUnauthorized
		}
		return nil, err
	}
	if !u.Active {
		return nil, shared.ErrUnauthorized
	}
	if err := a.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUserParams holds the input for CreateUser.
type CreateUserParams struct {
	ID        string
	Login     string
	Password  string
	PartnerID string
	Internal  bool
	CreatedAt time.Time
}

// CreateUser hashes the password and stores an active user.
func (a *Authenticator) CreateUser(ctx context.Context, p CreateUserParams) (*account.User, error) {
	login := account.NormalizeLogin(p.Login)
	if login == "" {
		return nil, shared.NewDomainError("account", "Create", shared.ErrEmptyValue, "login is required")
	}
	if !p.Internal && p.PartnerID == "" {
		return nil, shared.NewDomainError("account", "Create", shared.ErrEmptyValue, "partner is required for portal users")
	}
	hash, err := a.hasher.Hash(p.Password)
	if err != nil {
		return nil, err
	}
	u := &account.User{
		ID:           p.ID,
		Login:        login,
		PasswordHash: hash,
		PartnerID:    p.PartnerID,
		Internal:     p.Internal,
		Active:       true,
		CreatedAt:    p.CreatedAt,
	}
	if err := a.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
