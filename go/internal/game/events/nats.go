package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// DefaultSubjectPrefix is the subject namespace game events are published under
const DefaultSubjectPrefix = "game.events"

// NATSConfig holds connection settings for the event bus
type NATSConfig struct {
	URL           string
	Name          string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS settings
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "lastbuyer",
		SubjectPrefix: DefaultSubjectPrefix,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Connect opens a NATS connection with logging handlers attached
func Connect(cfg NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Msg("connected to NATS")
	return nc, nil
}

// Subject returns the subject an event type is published on
func Subject(prefix string, t EventType) string {
	return fmt.Sprintf("%s.%s", prefix, t)
}

// NATSPublisher publishes game events to NATS so every server instance can fan them out
type NATSPublisher struct {
	nc            *nats.Conn
	subjectPrefix string
}

// NewNATSPublisher creates a publisher on an existing connection
func NewNATSPublisher(nc *nats.Conn, subjectPrefix string) *NATSPublisher {
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{
		nc:            nc,
		subjectPrefix: subjectPrefix,
	}
}

func (p *NATSPublisher) Publish(ctx context.Context, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := Subject(p.subjectPrefix, event.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Int("size", len(data)).
		Msg("published game event")
	return nil
}
