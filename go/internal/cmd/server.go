package main

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	privKeyFile   = "privkey.pem"
	fullChainFile = "fullchain.pem"
	wsPath        = "/ws"
)

// loadTLSConfig loads the key pair from certDir. Any failure means HTTP mode.
func loadTLSConfig(certDir string) (*tls.Config, error) {
	keyPath := filepath.Join(certDir, privKeyFile)
	certPath := filepath.Join(certDir, fullChainFile)

	for _, p := range []string{keyPath, certPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("certificate file %s: %w", p, err)
		}
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load key pair: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// setupServers returns the listeners to run: :443 plus the :80 redirector when
// certificates load, otherwise a single h2c development listener
func setupServers(config *Config, handler http.Handler) []*http.Server {
	if !config.IsDevelopment() {
		tlsConfig, err := loadTLSConfig(config.CertDirectory())
		if err == nil {
			return []*http.Server{
				newServer(config.Server.HTTPSAddr, handler, tlsConfig),
				newServer(config.Server.RedirectAddr, redirectHandler(config.Server.Domain), nil),
			}
		}
		log.Warn().Err(err).Msg("production certificates unavailable, using HTTP")
	}

	return []*http.Server{
		newServer(config.Server.DevAddr, h2c.NewHandler(handler, &http2.Server{}), nil),
	}
}

func newServer(addr string, handler http.Handler, tlsConfig *tls.Config) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		TLSConfig:         tlsConfig,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func redirectHandler(domain string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://"+domain+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}

// setupHandler builds the middleware chain:
// logging → security headers → CORS → rate limit → (gzip + access log) → routes.
// The WebSocket route skips gzip and the access log so the connection can be hijacked.
func setupHandler(config *Config, services *Services) http.Handler {
	mux := http.NewServeMux()

	services.Game.RegisterRoutes(mux)
	services.Gateway.RegisterRoutes(mux)
	setupHealthCheck(mux)
	mux.Handle("GET /health/ready", services.Health)
	mux.HandleFunc("/api/", apiNotFound)
	mux.Handle("/", newSPAHandler(config.Server.StaticDir))

	logged := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(mux)
	compressed := gzhttp.GzipHandler(logged)

	routes := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == wsPath {
			mux.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: config.Origins(),
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedHeaders: []string{"Content-Type"},
	})

	var handler http.Handler = routes
	handler = services.Limiter.Middleware(handler)
	handler = c.Handler(handler)
	handler = services.Headers.Middleware(handler)
	handler = hlog.NewHandler(log.Logger)(handler)
	return handler
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

// apiNotFound keeps unknown API paths from falling through to the SPA
func apiNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"not found"}` + "\n"))
}

func setupLogging(config *Config) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
