// Package session stores code-login sessions and the deny-list of revoked
// credentials.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/shopdesk/jobtickets/internal/domain"
)

// ErrNotFound is returned when no live session exists for a token.
var ErrNotFound = errors.New("session not found")

// Record is a stored session.
type Record struct {
	Identity  domain.Identity `cbor:"1,keyasint"`
	IssuedAt  time.Time       `cbor:"2,keyasint"`
	ExpiresAt time.Time       `cbor:"3,keyasint"`
}

// NewRecord builds a record valid for ttl from now.
func NewRecord(identity domain.Identity, now time.Time, ttl time.Duration) Record {
	return Record{Identity: identity, IssuedAt: now, ExpiresAt: now.Add(ttl)}
}

// Expired reports whether the record is no longer valid at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Store persists session records keyed by opaque token.
type Store interface {
	Save(ctx context.Context, token string, record Record) error
	Load(ctx context.Context, token string) (*Record, error)
	Delete(ctx context.Context, token string) error
}

// Revocations tracks credential ids that must no longer be accepted.
type Revocations interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// NewToken returns a random URL-safe session token.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
