// Package account models the users allowed into the participant portal.
package account

import (
	"context"
	"strings"
	"time"
)

// User is a login bound to a partner. Internal users are staff and may see
// every participant record; portal users only see their own.
type User struct {
	ID           string
	Login        string
	PasswordHash string
	PartnerID    string
	Internal     bool
	Active       bool
	CreatedAt    time.Time
}

// NormalizeLogin lower-cases and trims a login.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// CanView reports whether the user may open a participant belonging to partnerID.
func (u *User) CanView(partnerID string) bool {
	return u.Internal || u.PartnerID == partnerID
}

// PasswordHasher hashes and verifies portal passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByLogin(ctx context.Context, login string) (*User, error)
}
