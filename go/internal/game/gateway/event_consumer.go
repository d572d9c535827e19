package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcdev12/lastbuyer/go/internal/game/events"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// EventConsumer subscribes to game events on NATS and broadcasts them to WebSocket clients.
// Every server instance runs one, so a buy on any instance reaches every socket.
type EventConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	subject           string

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewEventConsumer creates a consumer for all subjects under prefix
func NewEventConsumer(cm *ConnectionManager, nc *nats.Conn, prefix string) *EventConsumer {
	if prefix == "" {
		prefix = events.DefaultSubjectPrefix
	}
	return &EventConsumer{
		connectionManager: cm,
		nc:                nc,
		subject:           prefix + ".>",
	}
}

// Start begins consuming events until ctx is cancelled
func (ec *EventConsumer) Start(ctx context.Context) error {
	messageCh := make(chan *nats.Msg, 256)
	sub, err := ec.nc.ChanSubscribe(ec.subject, messageCh)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", ec.subject, err)
	}
	ec.mu.Lock()
	ec.sub = sub
	ec.mu.Unlock()

	log.Info().Str("subject", ec.subject).Msg("starting game event consumer")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := ec.handleMessage(msg.Data); err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject).
					Msg("failed to handle game event")
			}
		}
	}
}

// Stop removes the subscription
func (ec *EventConsumer) Stop() error {
	ec.mu.Lock()
	sub := ec.sub
	ec.sub = nil
	ec.mu.Unlock()

	if sub == nil {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribe from %s: %w", ec.subject, err)
	}
	return nil
}

func (ec *EventConsumer) handleMessage(data []byte) error {
	var event events.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if event.Type == "" {
		return fmt.Errorf("event %q has no type", event.ID)
	}
	return ec.connectionManager.Broadcast(&event)
}
