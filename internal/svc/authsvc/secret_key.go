package authsvc

import (
	"bytes"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// KeyType is the PEM block type of the session secret.
const KeyType = "CATALOG SESSION SECRET"

// DefaultKeySize is the size of generated secrets in bytes.
const DefaultKeySize = 32

// ErrInvalidSecretKey is returned for a key file that does not hold a session secret.
var ErrInvalidSecretKey = errors.New("invalid secret key")

// DecodeSecretKey reads a PEM-encoded session secret.
func DecodeSecretKey(key io.Reader) ([]byte, error) {
	buf, err := io.ReadAll(key)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}

	block, _ := pem.Decode(buf)
	if block == nil || block.Type != KeyType {
		return nil, fmt.Errorf("decode key: %w", ErrInvalidSecretKey)
	} else if len(block.Bytes) < DefaultKeySize {
		return nil, fmt.Errorf("decode key: %w: %d bytes", ErrInvalidSecretKey, len(block.Bytes))
	}

	return block.Bytes, nil
}

// GenerateSecretKey returns size random bytes.
func GenerateSecretKey(size int) ([]byte, error) {
	secret := make([]byte, size)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	return secret, nil
}

// EncodeSecretKey encodes a session secret in PEM format.
func EncodeSecretKey(secret []byte) ([]byte, error) {
	//nolint:exhaustruct
	pemBlock := &pem.Block{
		Type:  KeyType,
		Bytes: secret,
	}

	var buf bytes.Buffer

	if err := pem.Encode(&buf, pemBlock); err != nil {
		return nil, fmt.Errorf("encode key: %w", err)
	}

	return buf.Bytes(), nil
}

// GetSecretKey loads the session secret from path, generating and saving a
// new one if the file does not exist.
func GetSecretKey(path string) ([]byte, error) {
	keyFile, err := os.Open(path)
	if err == nil {
		defer keyFile.Close()

		secret, err := DecodeSecretKey(keyFile)
		if err != nil {
			return nil, fmt.Errorf("decode secret key: %w", err)
		}

		return secret, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open key file: %w", err)
	}

	secret, err := GenerateSecretKey(DefaultKeySize)
	if err != nil {
		return nil, fmt.Errorf("generate secret key: %w", err)
	}

	keyBytes, err := EncodeSecretKey(secret)
	if err != nil {
		return nil, fmt.Errorf("encode secret key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir key dir: %w", err)
	}

	if err := os.WriteFile(path, keyBytes, 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}

	return secret, nil
}
