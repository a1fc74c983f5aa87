package idtoken_test

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	context_ "github.com/mkrupp/itemcatalog/internal/infra/context"
	http_ "github.com/mkrupp/itemcatalog/internal/infra/transport/http"
	"github.com/mkrupp/itemcatalog/internal/svc/authsvc/idtoken/idtokentest"

	. "github.com/mkrupp/itemcatalog/internal/svc/authsvc/idtoken"
)

func encodeJWK(kid string, key *rsa.PublicKey) map[string]string {
	return map[string]string{
		"kid": kid,
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}

func setupJWKSServer(t *testing.T, key *rsa.PublicKey) (*httptest.Server, *atomic.Int32, *atomic.Value) {
	t.Helper()

	var (
		hits    atomic.Int32
		traceID atomic.Value
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		traceID.Store(r.Header.Get(http_.TraceIDHeader))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{
				encodeJWK(idtokentest.KeyID, key),
				{"kid": "ec", "kty": "EC"},
			},
		})
	}))
	t.Cleanup(server.Close)

	return server, &hits, &traceID
}

func TestJWKSKeySource_Key(t *testing.T) {
	t.Parallel()

	issuer := idtokentest.New(t)
	server, hits, traceID := setupJWKSServer(t, &issuer.Key.PublicKey)

	//nolint:exhaustruct
	source := NewJWKSKeySource(Config{CertsURL: server.URL, CacheTTL: time.Hour}, server.Client())

	ctx := context_.WithTraceID(context.TODO(), "trace-1")

	key, err := source.Key(ctx, idtokentest.KeyID)
	require.NoError(t, err)
	assert.True(t, key.Equal(&issuer.Key.PublicKey))
	assert.Equal(t, "trace-1", traceID.Load())

	_, err = source.Key(ctx, idtokentest.KeyID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "cached key must not be refetched")

	_, err = source.Key(ctx, "unknown")
	require.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, int32(1), hits.Load(), "unknown kid right after a fetch must not refetch")
}

func TestJWKSKeySource_FetchFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	//nolint:exhaustruct
	source := NewJWKSKeySource(Config{CertsURL: server.URL, CacheTTL: time.Hour}, server.Client())

	_, err := source.Key(context.TODO(), "any")
	require.ErrorIs(t, err, ErrFetchKeys)
}

func TestJWKSKeySource_WithVerifier(t *testing.T) {
	t.Parallel()

	issuer := idtokentest.New(t)
	server, _, _ := setupJWKSServer(t, &issuer.Key.PublicKey)

	cfg := issuer.Config()
	cfg.CertsURL = server.URL
	cfg.CacheTTL = time.Hour

	verifier := NewVerifier(cfg, NewJWKSKeySource(cfg, server.Client()))

	identity, err := verifier.Verify(context.TODO(), issuer.Sign(t, idtokentest.Claims("bob@x.com", "Bob")))
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", identity.Email)
}
