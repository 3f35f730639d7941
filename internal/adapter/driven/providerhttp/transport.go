// Package providerhttp holds the HTTP plumbing shared by the provider
// clients: a rate-limited base transport, per-token response caches and the
// mapping from HTTP failures to the domain error taxonomy.
package providerhttp

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds each request alongside context cancellation.
const DefaultTimeout = 30 * time.Second

// UserAgent is sent with every provider request.
const UserAgent = "deploybar"

// limitedTransport waits on a token bucket before each round trip.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

// NewLimitedTransport wraps base so requests never exceed rps per second on
// average, with bursts up to burst. A non-positive rps disables limiting.
func NewLimitedTransport(base http.RoundTripper, rps float64, burst int) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if rps <= 0 {
		return base
	}
	if burst < 1 {
		burst = 1
	}
	return &limitedTransport{base: base, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.base.RoundTrip(req)
}

// ClientPool hands out one HTTP client per token. Each client has its own
// in-memory response cache so conditional GETs never cross accounts; all of
// them share the same base transport and rate limit.
type ClientPool struct {
	base    http.RoundTripper
	timeout time.Duration
	cached  bool

	mu      sync.Mutex
	clients map[string]*http.Client
}

// NewClientPool creates a pool with ETag caching enabled.
func NewClientPool(base http.RoundTripper) *ClientPool {
	return &ClientPool{
		base:    base,
		timeout: DefaultTimeout,
		cached:  true,
		clients: make(map[string]*http.Client),
	}
}

// NewStaticPool returns a pool that always hands out client, without caching.
// It is used to point adapters at test servers.
func NewStaticPool(client *http.Client) *ClientPool {
	return &ClientPool{
		base:    client.Transport,
		timeout: client.Timeout,
		clients: make(map[string]*http.Client),
	}
}

// Client returns the HTTP client for token.
func (p *ClientPool) Client(token string) *http.Client {
	sum := sha256.Sum256([]byte(token))
	key := hex.EncodeToString(sum[:])

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c
	}

	transport := p.base
	if p.cached {
		ct := httpcache.NewMemoryCacheTransport()
		ct.Transport = p.base
		transport = ct
	}
	c := &http.Client{Transport: transport, Timeout: p.timeout}
	p.clients[key] = c
	return c
}

// Forget drops the cached client of token, for example after the account
// was removed.
func (p *ClientPool) Forget(token string) {
	sum := sha256.Sum256([]byte(token))
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.clients, hex.EncodeToString(sum[:]))
}

// Streaming returns a client for long-lived responses such as followed log
// streams. It bypasses the cache and has no overall timeout; callers bound it
// with their context.
func (p *ClientPool) Streaming() *http.Client {
	return &http.Client{Transport: p.base}
}
