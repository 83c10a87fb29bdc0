package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	resumatchErrors "resumatch/internal/errors"

	"golang.org/x/time/rate"
)

// limiterEvictionAge is how long an idle client keeps its token bucket.
const limiterEvictionAge = 10 * time.Minute

// visitor pairs a token bucket with the time it was last used.
type visitor struct {
	bucket *rate.Limiter
	seen   time.Time
}

// LimiterPool hands out a token bucket per client key (IP or API key)
// and evicts buckets that have gone idle.
type LimiterPool struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	refill   rate.Limit
	capacity int
	quit     chan struct{}
	logger   *resumatchErrors.Logger
}

// NewLimiterPool creates a manager allowing requestsPerMin sustained
// requests with bursts up to burstCapacity.
func NewLimiterPool(requestsPerMin, burstCapacity int, logger *resumatchErrors.Logger) *LimiterPool {
	if logger == nil {
		logger = resumatchErrors.Discard()
	}
	m := &LimiterPool{
		visitors: make(map[string]*visitor),
		refill:   rate.Limit(float64(requestsPerMin) / 60.0),
		capacity: burstCapacity,
		quit:     make(chan struct{}),
		logger:   logger,
	}

	go m.evictLoop()
	return m
}

// Allow reports whether a request for the given key fits its token bucket.
func (m *LimiterPool) Allow(key string) bool {
	m.mu.Lock()
	v, ok := m.visitors[key]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(m.refill, m.capacity)}
		m.visitors[key] = v
	}
	v.seen = time.Now()
	m.mu.Unlock()

	return v.bucket.Allow()
}

// GetStats returns current rate limiter statistics
func (m *LimiterPool) GetStats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]any{
		"active_limiters": len(m.visitors),
		"rate_per_second": float64(m.refill),
		"rate_per_minute": float64(m.refill) * 60.0,
		"burst_capacity":  m.capacity,
	}
}

func (m *LimiterPool) evictLoop() {
	ticker := time.NewTicker(limiterEvictionAge)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.quit:
			return
		}
	}
}

// evictIdle drops buckets that have not been touched within the eviction age.
func (m *LimiterPool) evictIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-limiterEvictionAge)
	for key, v := range m.visitors {
		if v.seen.Before(cutoff) {
			delete(m.visitors, key)
		}
	}
	m.logger.Debug("Rate limiter eviction pass finished", "remaining_limiters", len(m.visitors))
}

// Close stops the eviction goroutine.
func (m *LimiterPool) Close() {
	close(m.quit)
}

// throttleMiddleware rejects requests that exceed the per-client budget.
func (s *Server) throttleMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := limiterKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			if key != "" && !s.RateLimiter.Allow(key) {
				s.Logger.Info("Rate limit exceeded", "key", key, "endpoint", r.URL.Path, "client_ip", clientIP(r))
				s.writeAppError(w, resumatchErrors.NewRateLimitError(resumatchErrors.ErrCodeRateLimited, "Too many requests", nil))
				return
			}
			next(w, r)
		}
	}
}

// limiterKey chooses the bucket key for a request. API key identity is
// preferred over the client IP when both are enabled.
func limiterKey(r *http.Request, byAPIKey, byIP bool) string {
	if byAPIKey {
		if key := clientAPIKey(r); key != "" {
			return "api:" + key
		}
	}
	if byIP {
		return "ip:" + clientIP(r)
	}
	return ""
}

// clientIP resolves the client address, honoring proxy headers before
// falling back to the connection's remote address.
func clientIP(r *http.Request) string {
	if ip := parseFirstIP(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	if xri := r.Header.Get("X-Real-IP"); net.ParseIP(xri) != nil {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseFirstIP returns the first valid address in a comma-separated list.
func parseFirstIP(list string) string {
	for raw := range strings.SplitSeq(list, ",") {
		if ip := strings.TrimSpace(raw); net.ParseIP(ip) != nil {
			return ip
		}
	}
	return ""
}
