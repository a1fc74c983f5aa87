// Package idtoken verifies ID tokens issued by a third-party identity provider.
package idtoken

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkrupp/itemcatalog/internal/domain"
	"github.com/mkrupp/itemcatalog/internal/infra/logging"
)

var (
	// ErrNotConfigured is returned when no client id has been configured.
	ErrNotConfigured = errors.New("id token verification not configured")
	// ErrNoKeyID is returned for tokens without a kid header.
	ErrNoKeyID = errors.New("no key id")
	// ErrUntrustedIssuer is returned when the iss claim is not one of Config.Issuers.
	ErrUntrustedIssuer = errors.New("untrusted issuer")
	// ErrNoEmail is returned for tokens without an email claim.
	ErrNoEmail = errors.New("no email claim")
)

// Config holds the settings of the ID token verifier.
type Config struct {
	// ClientID is the expected audience
	ClientID string `env:"CLIENT_ID" default:""`

	// Issuers lists the accepted iss values
	Issuers []string `env:"ISSUERS" default:"accounts.google.com,https://accounts.google.com"`

	// CertsURL serves the provider's signing keys as a JWK set
	CertsURL string `env:"CERTS_URL" default:"https://www.googleapis.com/oauth2/v3/certs"`

	// CacheTTL is how long fetched keys are trusted
	CacheTTL time.Duration `env:"CACHE_TTL" default:"1h"`

	// Leeway is the accepted clock skew for exp and iat
	Leeway time.Duration `env:"LEEWAY" default:"30s"`
}

// Claims are the ID token claims the catalog uses.
type Claims struct {
	jwt.RegisteredClaims

	Email     string `json:"email"`
	GivenName string `json:"given_name"`
	Picture   string `json:"picture"`
}

// Verifier checks signature, issuer, audience and expiry of RS256 ID tokens.
type Verifier struct {
	cfg  Config
	keys KeySource
	log  logging.Logger
	now  func() time.Time
}

// NewVerifier creates a Verifier resolving signing keys through keys.
func NewVerifier(cfg Config, keys KeySource) *Verifier {
	return &Verifier{
		cfg:  cfg,
		keys: keys,
		log:  logging.GetLogger("svc.authsvc.idtoken"),
		now:  time.Now,
	}
}

// WithClock replaces the time source. It is meant for tests.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now

	return v
}

// Verify parses raw and returns the identity it asserts.
// Every verification failure is reported as domain.ErrInvalidIDToken.
func (v *Verifier) Verify(ctx context.Context, raw string) (identity *domain.Identity, err error) {
	log := v.log

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "id token rejected", "error", err)
		} else {
			log.DebugContext(ctx, "id token verified")
		}
	}()

	if raw == "" {
		return nil, domain.ErrNoIDToken
	}

	if v.cfg.ClientID == "" {
		return nil, errors.Join(domain.ErrInvalidIDToken, ErrNotConfigured)
	}

	var claims Claims

	_, err = jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, ErrNoKeyID
		}

		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.cfg.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.cfg.Leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidIDToken, fmt.Errorf("parse: %w", err))
	}

	if !slices.Contains(v.cfg.Issuers, claims.Issuer) {
		return nil, errors.Join(domain.ErrInvalidIDToken, fmt.Errorf("%w: %q", ErrUntrustedIssuer, claims.Issuer))
	}

	if claims.Email == "" {
		return nil, errors.Join(domain.ErrInvalidIDToken, ErrNoEmail)
	}

	log = log.With(logging.Group("identity", "sub", claims.Subject, "email", claims.Email))

	return &domain.Identity{
		Subject:   claims.Subject,
		Email:     claims.Email,
		GivenName: claims.GivenName,
		Picture:   claims.Picture,
	}, nil
}
