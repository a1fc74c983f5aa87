package domain

import "errors"

var (
	// ErrNoIDToken is returned when a third-party sign-in carries no ID token.
	ErrNoIDToken = errors.New("no id token")
	// ErrInvalidIDToken is returned when an ID token fails signature, issuer, audience or expiry checks.
	ErrInvalidIDToken = errors.New("invalid id token")
	// ErrPasswordRequired is returned when a first third-party sign-in has no local password.
	ErrPasswordRequired = errors.New("password required")
)

// Identity holds the verified claims of a third-party ID token.
type Identity struct {
	Subject   string
	Email     string
	GivenName string
	Picture   string
}
