package idtoken

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	context_ "github.com/mkrupp/itemcatalog/internal/infra/context"
	"github.com/mkrupp/itemcatalog/internal/infra/logging"
	http_ "github.com/mkrupp/itemcatalog/internal/infra/transport/http"
)

// minRefreshInterval bounds how often an unknown kid triggers a refetch.
const minRefreshInterval = 30 * time.Second

var (
	// ErrFetchKeys is returned when the key endpoint does not answer with 200.
	ErrFetchKeys = errors.New("fetch keys failed")
	// ErrNoKeys is returned when the key set holds no usable RSA key.
	ErrNoKeys = errors.New("key set has no rsa keys")
	// ErrInvalidExponent is returned for a JWK with a malformed exponent.
	ErrInvalidExponent = errors.New("invalid exponent")
)

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSKeySource fetches a JWK set over HTTP and caches the keys for Config.CacheTTL.
type JWKSKeySource struct {
	httpClient *http.Client
	url        string
	ttl        time.Duration
	log        logging.Logger
	now        func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

var _ KeySource = (*JWKSKeySource)(nil)

// NewJWKSKeySource creates a key source for cfg.CertsURL.
// If httpClient is nil, a client with a 5 second timeout is used.
func NewJWKSKeySource(cfg Config, httpClient *http.Client) *JWKSKeySource {
	if httpClient == nil {
		//nolint:exhaustruct
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}

	return &JWKSKeySource{
		httpClient: httpClient,
		url:        cfg.CertsURL,
		ttl:        cfg.CacheTTL,
		log: logging.GetLogger("svc.authsvc.idtoken.jwks").With(
			logging.Group("jwks", "url", cfg.CertsURL),
		),
		now:  time.Now,
		keys: map[string]*rsa.PublicKey{},
	}
}

// Key implements KeySource.Key. The set is refetched when it has expired, or
// when kid is unknown and the last fetch is older than a short interval.
func (s *JWKSKeySource) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := s.now()

	s.mu.RLock()
	key, ok := s.keys[kid]
	fresh := now.Sub(s.fetchedAt) < s.ttl
	recent := now.Sub(s.fetchedAt) < minRefreshInterval
	s.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	if !ok && recent {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
	}

	if err := s.refresh(ctx, now); err != nil {
		return nil, fmt.Errorf("refresh keys: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if key, ok = s.keys[kid]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
	}

	return key, nil
}

func (s *JWKSKeySource) refresh(ctx context.Context, now time.Time) (err error) {
	defer func() {
		if err != nil {
			s.log.ErrorContext(ctx, "refresh keys failed", "error", err)
		} else {
			s.log.DebugContext(ctx, "keys refreshed")
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(http_.TraceIDHeader, traceID)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrFetchKeys, resp.StatusCode)
	}

	var payload struct {
		Keys []jwk `json:"keys"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(payload.Keys))

	for _, k := range payload.Keys {
		if !strings.EqualFold(k.Kty, "RSA") || k.Kid == "" {
			continue
		}

		key, err := k.publicKey()
		if err != nil {
			s.log.WarnContext(ctx, "skipping malformed key", "kid", k.Kid, "error", err)

			continue
		}

		keys[k.Kid] = key
	}

	if len(keys) == 0 {
		return ErrNoKeys
	}

	s.keys = keys
	s.fetchedAt = now

	return nil
}

func (k jwk) publicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}

	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	exponent := 0
	for _, b := range e {
		exponent = exponent<<8 | int(b)
	}

	if exponent <= 1 {
		return nil, ErrInvalidExponent
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: exponent}, nil
}
