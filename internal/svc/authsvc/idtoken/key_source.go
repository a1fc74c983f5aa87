package idtoken

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned when no signing key matches a kid.
var ErrKeyNotFound = errors.New("signing key not found")

// KeySource resolves the public key a token was signed with.
type KeySource interface {
	// Key returns the key for kid or an error wrapping ErrKeyNotFound.
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// StaticKeySource is a fixed set of keys by kid.
type StaticKeySource map[string]*rsa.PublicKey

var _ KeySource = StaticKeySource(nil)

// Key implements KeySource.Key.
func (s StaticKeySource) Key(_ context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok := s[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
	}

	return key, nil
}
