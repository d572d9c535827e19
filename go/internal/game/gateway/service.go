package gateway

import (
	"context"
	"net/http"

	"github.com/mcdev12/lastbuyer/go/internal/game/events"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Service is the game push gateway: it owns the WebSocket hub and, when NATS is
// configured, the consumer that feeds it
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	SubjectPrefix    string
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		SubjectPrefix:    events.DefaultSubjectPrefix,
	}
}

// NewService creates a new gateway. With a nil nc events must be pushed through Publish.
func NewService(config Config, nc *nats.Conn) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	s := &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
	}
	if nc != nil {
		s.eventConsumer = NewEventConsumer(connectionManager, nc, config.SubjectPrefix)
	}
	return s
}

// SetPlayerProvider wires the lookup used to answer subscribe commands
func (s *Service) SetPlayerProvider(p PlayerProvider) {
	s.connectionManager.SetPlayerProvider(p)
}

// Start runs the hub and the consumer until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("nats", s.eventConsumer != nil).Msg("starting game gateway service")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("game gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	log.Info().Msg("game gateway service stopped")
	return nil
}

// Publish pushes an event into the local hub
func (s *Service) Publish(ctx context.Context, event *events.Event) error {
	return s.connectionManager.Publish(ctx, event)
}

// RegisterRoutes registers the WebSocket and stats routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("game gateway routes registered")
}

// ConnectionCount returns the number of open sockets
func (s *Service) ConnectionCount() int {
	return s.connectionManager.GetConnectionStats().TotalConnections
}
