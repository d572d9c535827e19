package security

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// TooManyRequestsMessage is the error body of a rejected request
const TooManyRequestsMessage = "Too many requests!"

// RateLimitConfig configures the fixed-window limiter
type RateLimitConfig struct {
	Limit     int           `yaml:"limit"`
	Window    time.Duration `yaml:"window"`
	Whitelist []string      `yaml:"whitelist"`
}

// DefaultRateLimitConfig allows 60 requests per minute per IP
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:  60,
		Window: time.Minute,
	}
}

type window struct {
	count   int
	resetAt time.Time
}

// Decision is the outcome of counting one hit
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter counts requests per client IP in fixed windows. A key's window starts at
// its first hit.
type RateLimiter struct {
	config    RateLimitConfig
	resolver  *OriginResolver
	clock     clockwork.Clock
	whitelist map[string]struct{}

	mu      sync.Mutex
	windows map[string]*window
}

// NewRateLimiter creates a limiter. Zero config fields fall back to the defaults.
func NewRateLimiter(config RateLimitConfig, resolver *OriginResolver, clock clockwork.Clock) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.Limit <= 0 {
		config.Limit = defaults.Limit
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if resolver == nil {
		resolver = NewOriginResolver(false, nil)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	whitelist := make(map[string]struct{}, len(config.Whitelist))
	for _, ip := range config.Whitelist {
		whitelist[normalizeIP(ip)] = struct{}{}
	}

	return &RateLimiter{
		config:    config,
		resolver:  resolver,
		clock:     clock,
		whitelist: whitelist,
		windows:   make(map[string]*window),
	}
}

// Whitelisted reports whether ip bypasses the limiter
func (l *RateLimiter) Whitelisted(ip string) bool {
	_, ok := l.whitelist[ip]
	return ok
}

// Hit counts one request for key
func (l *RateLimiter) Hit(key string) Decision {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.config.Window)}
		l.windows[key] = w
	}
	w.count++

	remaining := l.config.Limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   w.count <= l.config.Limit,
		Limit:     l.config.Limit,
		Remaining: remaining,
		ResetAt:   w.resetAt,
	}
}

// Middleware enforces the limit on next
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	policy := strconv.Itoa(l.config.Limit) + ";w=" + strconv.Itoa(int(l.config.Window/time.Second))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, info := l.resolver.Ensure(r)
		if l.Whitelisted(info.IP) {
			next.ServeHTTP(w, r)
			return
		}

		d := l.Hit(info.IP)
		reset := l.secondsUntil(d.ResetAt)

		header := w.Header()
		header.Set("RateLimit-Policy", policy)
		header.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
		header.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
		header.Set("RateLimit-Reset", strconv.Itoa(reset))

		if !d.Allowed {
			if header.Get("X-Request-Id") == "" {
				header.Set("X-Request-Id", info.ID)
			}
			hlog.FromRequest(r).Warn().
				Str("req_id", info.ID).
				Str("ip", info.IP).
				Str("country", info.Country).
				Str("path", r.URL.Path).
				Msg("rate limit exceeded")

			header.Set("Retry-After", strconv.Itoa(reset))
			header.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": TooManyRequestsMessage})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start purges expired windows every window length until ctx is cancelled
func (l *RateLimiter) Start(ctx context.Context) {
	ticker := l.clock.NewTicker(l.config.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := l.purge(); n > 0 {
				log.Debug().Int("purged", n).Msg("expired rate limit windows purged")
			}
		}
	}
}

func (l *RateLimiter) purge() int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	purged := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
			purged++
		}
	}
	return purged
}

func (l *RateLimiter) secondsUntil(t time.Time) int {
	secs := int(math.Ceil(t.Sub(l.clock.Now()).Seconds()))
	if secs < 0 {
		return 0
	}
	return secs
}
