package domain

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session does not exist or has expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSessionToken is returned when a session cookie fails verification.
	ErrInvalidSessionToken = errors.New("invalid session token")
)

// Session is a server side sign-in record referenced by the session cookie.
type Session struct {
	ID         string `db:"id"         json:"id"`
	UserID     int64  `db:"user_id"    json:"user_id"`
	Persistent bool   `db:"persistent" json:"persistent"`
	CreatedAt  int64  `db:"created_at" json:"created_at"`
	ExpiresAt  int64  `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

// TTL returns the remaining lifetime of the session at now.
func (s *Session) TTL(now time.Time) time.Duration {
	return time.Unix(s.ExpiresAt, 0).Sub(now)
}
