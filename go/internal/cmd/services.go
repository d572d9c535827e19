package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/lastbuyer/go/internal/dbconfig"
	"github.com/mcdev12/lastbuyer/go/internal/game"
	"github.com/mcdev12/lastbuyer/go/internal/game/events"
	"github.com/mcdev12/lastbuyer/go/internal/game/gateway"
	"github.com/mcdev12/lastbuyer/go/internal/health"
	"github.com/mcdev12/lastbuyer/go/internal/security"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type Services struct {
	App     *game.App
	Game    *game.Service
	Gateway *gateway.Service
	Headers *security.Headers
	Limiter *security.RateLimiter
	Health  *health.Checker

	pool    *pgxpool.Pool
	closers []func()
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Repository → App → HTTP service, with the gateway as the event sink
	s := &Services{}

	repo, err := s.setupRepository(ctx, config)
	if err != nil {
		s.Close()
		return nil, err
	}

	var (
		nc        *nats.Conn
		publisher events.Publisher
	)
	if config.NATS.URL != "" {
		natsConfig := events.DefaultNATSConfig()
		natsConfig.URL = config.NATS.URL
		natsConfig.SubjectPrefix = config.NATS.SubjectPrefix
		nc, err = events.Connect(natsConfig)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() {
			if err := nc.Drain(); err != nil {
				log.Error().Err(err).Msg("failed to drain NATS connection")
			}
		})
		publisher = events.NewNATSPublisher(nc, config.NATS.SubjectPrefix)
	}

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.SubjectPrefix = config.NATS.SubjectPrefix
	gatewayConfig.ConnectionConfig.AllowedOrigins = config.Origins()
	s.Gateway = gateway.NewService(gatewayConfig, nc)
	if publisher == nil {
		publisher = s.Gateway
	}

	s.App = game.NewApp(repo, publisher, clockwork.NewRealClock(), config.Game)
	s.Gateway.SetPlayerProvider(s.App)
	s.Game = game.NewService(s.App)

	var locator security.GeoLocator
	if config.Server.GeoIPPath != "" {
		mm, err := security.OpenMaxMind(config.Server.GeoIPPath)
		if err != nil {
			// Country stays empty; never fatal
			log.Warn().Err(err).Msg("geoip database unavailable")
		} else {
			locator = mm
			s.closers = append(s.closers, func() { mm.Close() })
		}
	}

	resolver := security.NewOriginResolver(config.Server.TrustProxy, locator)
	s.Headers = security.NewHeaders(config.Server.Domain, resolver)
	s.Limiter = security.NewRateLimiter(config.RateLimit, resolver, clockwork.NewRealClock())

	var db health.Pinger
	if s.pool != nil {
		db = s.pool
	}
	s.Health = health.NewChecker(db, nc, s.App, s.Gateway)

	return s, nil
}

func (s *Services) setupRepository(ctx context.Context, config *Config) (game.GameRepository, error) {
	dbConfig := dbconfig.NewConfigFromEnv()
	if !dbConfig.Enabled() {
		log.Info().Msg("no database configured, keeping game state in memory")
		return game.NewMemoryRepository(config.Game.ChatHistory), nil
	}

	pool, err := setupDatabase(ctx, dbConfig)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	s.closers = append(s.closers, pool.Close)

	repo := game.NewPGRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare database: %w", err)
	}
	return repo, nil
}

// Start launches the background workers. They stop when ctx is cancelled.
func (s *Services) Start(ctx context.Context) {
	go func() {
		if err := s.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		if err := s.App.Run(ctx); err != nil {
			log.Error().Err(err).Msg("round keeper failed")
		}
	}()

	go s.Limiter.Start(ctx)
}

// Close releases connections in reverse order of creation
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
