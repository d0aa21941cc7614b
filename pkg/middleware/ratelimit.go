package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/jwtpizza/pkg/httputil"
	"github.com/platinummonkey/jwtpizza/pkg/observability"
)

// RateLimitConfig describes a token bucket: RequestsPerWindow tokens are
// refilled evenly over WindowDuration, and a full bucket holds
// RequestsPerWindow+BurstSize tokens.
//
// Forwarding headers are only read when the direct peer is one of
// TrustedProxies (addresses or CIDR prefixes).
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
	BurstSize         int
	TrustedProxies    []string
}

// LoginRateLimitConfig returns the default limits for login attempts per client
func LoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 30,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// RateLimiter keeps one token bucket per client key
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	proxies []netip.Prefix
	mu      sync.RWMutex
	now     func() time.Time
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates a rate limiter. A nil config uses LoginRateLimitConfig.
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = LoginRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		proxies: parseProxies(config.TrustedProxies),
		now:     time.Now,
	}
}

// parseProxies skips malformed entries; config.Validate reports them
func parseProxies(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, entry := range entries {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return out
}

// Allow takes one token from key's bucket, reporting false when it is empty
func (rl *RateLimiter) Allow(key string) bool {
	b := rl.bucketFor(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	rl.refill(b)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Remaining returns the whole tokens left for key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()
	if !ok {
		return rl.capacity()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	rl.refill(b)
	return int(b.tokens)
}

// RetryAfter returns how long key must wait for its next token
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()
	if !ok || rl.config.RequestsPerWindow <= 0 {
		return rl.config.WindowDuration
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	rl.refill(b)
	missing := 1 - b.tokens
	if missing <= 0 {
		return 0
	}
	perToken := rl.config.WindowDuration / time.Duration(rl.config.RequestsPerWindow)
	return time.Duration(missing * float64(perToken))
}

// Cleanup drops buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		idle := now.Sub(b.lastUpdate) > 2*rl.config.WindowDuration
		b.mu.Unlock()
		if idle {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup once per window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (rl *RateLimiter) bucketFor(key string) *bucket {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok = rl.buckets[key]; !ok {
		b = &bucket{tokens: float64(rl.capacity()), lastUpdate: rl.now()}
		rl.buckets[key] = b
	}
	return b
}

// refill must be called with b.mu held
func (rl *RateLimiter) refill(b *bucket) {
	now := rl.now()
	elapsed := now.Sub(b.lastUpdate)
	if elapsed <= 0 || rl.config.WindowDuration <= 0 {
		return
	}
	added := elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds()
	b.tokens = math.Min(float64(rl.capacity()), b.tokens+added)
	b.lastUpdate = now
}

func (rl *RateLimiter) capacity() int {
	return rl.config.RequestsPerWindow + rl.config.BurstSize
}

// RateLimit throttles requests per client IP. Over the limit the client gets
// 429 with a Retry-After header in whole seconds.
func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + limiter.clientIP(r)
			if !limiter.Allow(key) {
				wait := int(math.Ceil(limiter.RetryAfter(key).Seconds()))
				if wait < 1 {
					wait = 1
				}
				observability.FromContext(r.Context()).WithField("client", key).Warn("rate limit exceeded")
				w.Header().Set("Retry-After", strconv.Itoa(wait))
				httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the peer address, or the nearest untrusted hop in
// X-Forwarded-For when the peer is a trusted proxy
func (rl *RateLimiter) clientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !rl.trusted(peer) {
		return peer
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if i == 0 || !rl.trusted(hop) {
				return hop
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return peer
}

func (rl *RateLimiter) trusted(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range rl.proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
