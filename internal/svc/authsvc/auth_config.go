package authsvc

import (
	"fmt"
	"time"

	"github.com/mkrupp/itemcatalog/internal/svc/authsvc/idtoken"
)

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// SecretKey signs session cookies. When empty, SecretKeyFile is used
	SecretKey string `env:"SECRET_KEY" default:""`

	// SecretKeyFile holds the generated session secret
	SecretKeyFile string `env:"SECRET_KEY_FILE" default:"var/storage/catalog.key"`

	// SessionDuration is the lifetime of sessions without "remember me"
	SessionDuration time.Duration `env:"SESSION_DURATION" default:"24h"`

	// RememberDuration is the lifetime of persistent sessions
	RememberDuration time.Duration `env:"REMEMBER_DURATION" default:"8760h"`

	CookieName   string `env:"COOKIE_NAME" default:"catalog_session"`
	CookieSecure bool   `env:"COOKIE_SECURE" default:"false"`

	// BcryptCost is the work factor of password hashes
	BcryptCost int `env:"BCRYPT_COST" default:"10"`

	Google idtoken.Config `envPrefix:"GOOGLE_"`
}

// Secret returns the configured session secret, loading or creating SecretKeyFile
// if no literal key is set.
func (cfg AuthConfig) Secret() ([]byte, error) {
	if cfg.SecretKey != "" {
		return []byte(cfg.SecretKey), nil
	}

	secret, err := GetSecretKey(cfg.SecretKeyFile)
	if err != nil {
		return nil, fmt.Errorf("get secret key: %w", err)
	}

	return secret, nil
}
