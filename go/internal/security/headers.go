package security

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestInfo is the geo-origin and id attached to every request
type RequestInfo struct {
	ID      string
	IP      string
	Country string
}

type requestInfoKey struct{}

// WithRequestInfo stores info on ctx
func WithRequestInfo(ctx context.Context, info *RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// FromContext returns the request info stored by the header middleware
func FromContext(ctx context.Context) (*RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(*RequestInfo)
	return info, ok && info != nil
}

// OriginResolver computes RequestInfo for incoming requests
type OriginResolver struct {
	trustProxy bool
	locator    GeoLocator
}

// NewOriginResolver creates a resolver. A nil locator leaves the country empty.
func NewOriginResolver(trustProxy bool, locator GeoLocator) *OriginResolver {
	if locator == nil {
		locator = NopLocator{}
	}
	return &OriginResolver{
		trustProxy: trustProxy,
		locator:    locator,
	}
}

// Resolve builds fresh request info for r
func (o *OriginResolver) Resolve(r *http.Request) *RequestInfo {
	ip := ClientIP(r, o.trustProxy)
	return &RequestInfo{
		ID:      uuid.New().String(),
		IP:      ip,
		Country: o.locator.Country(ip),
	}
}

// Ensure returns the request info on r, resolving and attaching it when missing
func (o *OriginResolver) Ensure(r *http.Request) (*http.Request, *RequestInfo) {
	if info, ok := FromContext(r.Context()); ok {
		return r, info
	}
	info := o.Resolve(r)
	ctx := WithRequestInfo(r.Context(), info)

	// Tag the request logger installed by hlog.NewHandler, if any
	zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("req_id", info.ID).Str("ip", info.IP).Str("country", info.Country)
	})
	return r.WithContext(ctx), info
}

// ContentSecurityPolicy returns the policy served with every response
func ContentSecurityPolicy(domain string) string {
	return fmt.Sprintf("default-src 'self';base-uri 'self';font-src 'self' https: data:;"+
		"form-action 'self';frame-ancestors 'self';img-src 'self' https://%s data:;"+
		"object-src 'none';script-src 'self';script-src-attr 'none';"+
		"style-src 'self' https: 'unsafe-inline';upgrade-insecure-requests", domain)
}

// ResponseHeaders returns the fixed security header set
func ResponseHeaders(domain string) map[string]string {
	return map[string]string{
		"Content-Security-Policy":           ContentSecurityPolicy(domain),
		"Cross-Origin-Opener-Policy":        "same-origin",
		"Cross-Origin-Resource-Policy":      "same-site",
		"Origin-Agent-Cluster":              "?1",
		"Referrer-Policy":                   "no-referrer",
		"X-Content-Type-Options":            "nosniff",
		"X-Download-Options":                "noopen",
		"X-Frame-Options":                   "SAMEORIGIN",
		"X-Permitted-Cross-Domain-Policies": "none",
		"X-XSS-Protection":                  "0",
	}
}

// Headers attaches the security headers and the request geo-origin
type Headers struct {
	headers  map[string]string
	resolver *OriginResolver
}

// NewHeaders creates the header middleware for domain
func NewHeaders(domain string, resolver *OriginResolver) *Headers {
	return &Headers{
		headers:  ResponseHeaders(domain),
		resolver: resolver,
	}
}

// Middleware wraps next
func (h *Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, info := h.resolver.Ensure(r)

		header := w.Header()
		for k, v := range h.headers {
			header.Set(k, v)
		}
		header.Set("X-Request-Id", info.ID)

		next.ServeHTTP(w, r)
	})
}
