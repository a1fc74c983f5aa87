package websvc

import (
	http_ "github.com/mkrupp/itemcatalog/internal/infra/transport/http"
)

// WebConfig contains configuration parameters for the web frontend.
type WebConfig struct {
	http_.HTTPTransportConfig

	// MaxUploadSize limits multipart bodies of the profile form in bytes
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" default:"6291456"`

	// GoogleClientID renders the third-party sign-in button. Copied from the auth config
	GoogleClientID string

	RateLimit http_.RateLimitConfig `envPrefix:"RATE_LIMIT_"`
}
