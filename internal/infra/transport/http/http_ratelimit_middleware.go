package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkrupp/itemcatalog/internal/infra/logging"
)

// RateLimitConfig configures the per-client token bucket of credential endpoints.
type RateLimitConfig struct {
	// Rate is the number of requests per second a client may sustain. 0 disables limiting
	Rate float64 `env:"RATE" default:"1"`

	// Burst is the number of requests a client may send at once
	Burst int `env:"BURST" default:"10"`

	// IdleTTL is how long an unused client bucket is kept
	IdleTTL time.Duration `env:"IDLE_TTL" default:"10m"`
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits requests per client IP.
type RateLimiter struct {
	cfg     RateLimitConfig
	log     logging.Logger
	now     func() time.Time
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		log:     logging.GetLogger("infra.transport.http.ratelimit"),
		now:     time.Now,
		mu:      sync.Mutex{},
		clients: map[string]*clientLimiter{},
	}
}

// Allow reports whether the client may send another request now.
func (rl *RateLimiter) Allow(client string) bool {
	if rl.cfg.Rate <= 0 {
		return true
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.cfg.IdleTTL {
			delete(rl.clients, key)
		}
	}

	c, ok := rl.clients[client]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.cfg.Rate), rl.cfg.Burst), lastSeen: now}
		rl.clients[client] = c
	}

	c.lastSeen = now

	return c.limiter.AllowN(now, 1)
}

// Middleware rejects requests of clients over their budget with 429.
// Only methods that change state are counted.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)

			return
		}

		client := ClientIP(r)
		if !rl.Allow(client) {
			rl.log.WarnContext(r.Context(), "rate limit exceeded", "client", client, "uri", r.RequestURI)
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
