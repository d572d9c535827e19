package security

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLocator map[string]string

func (s staticLocator) Country(ip string) string { return s[ip] }

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{name: "ipv4", remoteAddr: "203.0.113.7:5123", want: "203.0.113.7"},
		{name: "ipv4 mapped ipv6", remoteAddr: "[::ffff:203.0.113.7]:5123", want: "203.0.113.7"},
		{name: "ipv6", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "no port", remoteAddr: "198.51.100.2", want: "198.51.100.2"},
		{name: "forwarded ignored without trust", remoteAddr: "10.0.0.1:80", forwarded: "203.0.113.9", want: "10.0.0.1"},
		{name: "forwarded first entry", remoteAddr: "10.0.0.1:80", forwarded: "203.0.113.9, 10.0.0.2", trustProxy: true, want: "203.0.113.9"},
		{name: "forwarded mapped", remoteAddr: "10.0.0.1:80", forwarded: "::ffff:198.51.100.4", trustProxy: true, want: "198.51.100.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, ClientIP(r, tt.trustProxy))
		})
	}
}

func TestHeaders_Middleware(t *testing.T) {
	resolver := NewOriginResolver(false, staticLocator{"203.0.113.7": "DE"})
	var seen *RequestInfo
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := FromContext(r.Context())
		require.True(t, ok)
		seen = info
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "[::ffff:203.0.113.7]:1234"
	rec := httptest.NewRecorder()
	NewHeaders("example.com", resolver).Middleware(next).ServeHTTP(rec, r)

	for k, v := range ResponseHeaders("example.com") {
		assert.Equal(t, v, rec.Header().Get(k), k)
	}
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "img-src 'self' https://example.com data:")
	assert.Empty(t, rec.Header().Get("X-Powered-By"))

	require.NotNil(t, seen)
	assert.Equal(t, "203.0.113.7", seen.IP)
	assert.Equal(t, "DE", seen.Country)
	assert.Equal(t, seen.ID, rec.Header().Get("X-Request-Id"))
	_, err := uuid.Parse(seen.ID)
	assert.NoError(t, err)
}

func TestHeaders_UniqueIDPerRequest(t *testing.T) {
	h := NewHeaders("example.com", NewOriginResolver(false, nil)).Middleware(http.NotFoundHandler())

	ids := make(map[string]bool)
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		ids[rec.Header().Get("X-Request-Id")] = true
	}
	assert.Len(t, ids, 5)
}

func TestOriginResolver_EnsureKeepsExistingInfo(t *testing.T) {
	resolver := NewOriginResolver(false, nil)
	existing := &RequestInfo{ID: "abc", IP: "1.2.3.4"}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(WithRequestInfo(r.Context(), existing))

	_, info := resolver.Ensure(r)
	assert.Same(t, existing, info)
}

func newLimiter(config RateLimitConfig) (*RateLimiter, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewRateLimiter(config, NewOriginResolver(false, nil), clock), clock
}

func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/api/game-state", nil)
	r.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestRateLimiter_Middleware(t *testing.T) {
	limiter, clock := newLimiter(RateLimitConfig{Limit: 3, Window: time.Minute})
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 1; i <= 3; i++ {
		rec := hit(h, "203.0.113.7:1000")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "3;w=60", rec.Header().Get("RateLimit-Policy"))
		assert.Equal(t, "3", rec.Header().Get("RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(3-i), rec.Header().Get("RateLimit-Remaining"))
		assert.Equal(t, "60", rec.Header().Get("RateLimit-Reset"))
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}

	clock.Advance(15 * time.Second)
	rec := hit(h, "203.0.113.7:1001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, "45", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests!"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	// Other clients have their own window.
	assert.Equal(t, http.StatusNoContent, hit(h, "198.51.100.1:1000").Code)

	clock.Advance(45 * time.Second)
	rec = hit(h, "203.0.113.7:1000")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("RateLimit-Remaining"))
}

func TestRateLimiter_Whitelist(t *testing.T) {
	limiter, _ := newLimiter(RateLimitConfig{Limit: 1, Window: time.Minute, Whitelist: []string{"::ffff:127.0.0.1"}})
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 5; i++ {
		rec := hit(h, "127.0.0.1:9000")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("RateLimit-Limit"))
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{}, nil, nil)
	assert.Equal(t, 60, limiter.config.Limit)
	assert.Equal(t, time.Minute, limiter.config.Window)
}

func TestRateLimiter_Purge(t *testing.T) {
	limiter, clock := newLimiter(RateLimitConfig{Limit: 5, Window: time.Minute})
	limiter.Hit("a")
	clock.Advance(30 * time.Second)
	limiter.Hit("b")

	clock.Advance(30 * time.Second)
	assert.Equal(t, 1, limiter.purge())
	assert.Len(t, limiter.windows, 1)
}

func TestRateLimiter_StartPurgesOnTick(t *testing.T) {
	limiter, clock := newLimiter(RateLimitConfig{Limit: 5, Window: time.Minute})
	limiter.Hit("a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go limiter.Start(ctx)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		limiter.mu.Lock()
		defer limiter.mu.Unlock()
		return len(limiter.windows) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRateLimiter_BehindHeaders(t *testing.T) {
	resolver := NewOriginResolver(false, nil)
	limiter, _ := newLimiter(RateLimitConfig{Limit: 1, Window: time.Minute})
	limiter.resolver = resolver
	h := NewHeaders("example.com", resolver).Middleware(limiter.Middleware(http.NotFoundHandler()))

	hit(h, "203.0.113.7:1")
	rec := hit(h, "203.0.113.7:1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TooManyRequestsMessage, body["error"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestOpenMaxMind_MissingFile(t *testing.T) {
	_, err := OpenMaxMind("/nonexistent/GeoLite2-Country.mmdb")
	assert.Error(t, err)
}
