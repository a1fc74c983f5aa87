package authsvc_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/mkrupp/itemcatalog/internal/svc/authsvc"
)

func TestGetSecretKey(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keys", "catalog.key")

	secret, err := GetSecretKey(path)
	require.NoError(t, err)
	assert.Len(t, secret, DefaultKeySize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := GetSecretKey(path)
	require.NoError(t, err)
	assert.Equal(t, secret, again)
}

func TestGetSecretKey_Invalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.key")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	_, err := GetSecretKey(path)
	require.ErrorIs(t, err, ErrInvalidSecretKey)
}

func TestAuthConfig_Secret(t *testing.T) {
	t.Parallel()

	//nolint:exhaustruct
	secret, err := AuthConfig{SecretKey: "literal"}.Secret()
	require.NoError(t, err)
	assert.Equal(t, []byte("literal"), secret)
}
