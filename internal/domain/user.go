package domain

import (
	"errors"
	"time"
)

// DefaultAvatar is the avatar filename of users that never uploaded one.
const DefaultAvatar = "default.jpg"

var (
	// ErrUserNotFound is returned when looking up a non-existent user.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when the username belongs to another user.
	ErrUsernameTaken = errors.New("username taken")
	// ErrEmailTaken is returned when the email belongs to another user.
	ErrEmailTaken = errors.New("email taken")
	// ErrInvalidCredentials is returned when the username/password combination is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User represents a registered account.
type User struct {
	ID           int64  `db:"id"`            // Unique identifier
	Username     string `db:"username"`      // Login username
	Email        string `db:"email"`         // Lowercased email address
	PasswordHash []byte `db:"password_hash"` // bcrypt hash
	Avatar       string `db:"avatar"`        // Filename below the avatar directory
	CreatedAt    int64  `db:"created_at"`    // Unix timestamp of account creation
}

// HasDefaultAvatar reports whether the user still uses DefaultAvatar.
func (u *User) HasDefaultAvatar() bool {
	return u.Avatar == "" || u.Avatar == DefaultAvatar
}

// Response returns the public JSON representation of the user.
func (u *User) Response() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Avatar:    u.Avatar,
		CreatedAt: FormatTimestamp(u.CreatedAt),
	}
}

// UserResponse is the user as exposed by the JSON API. Email and password hash are never included.
type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	CreatedAt string `json:"created_at"`
}

// FormatTimestamp renders a unix timestamp as RFC 3339 in UTC.
func FormatTimestamp(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}
