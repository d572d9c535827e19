package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/lastbuyer/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Status is the readiness report served on /health/ready
type Status struct {
	Healthy           bool     `json:"healthy"`
	DatabaseConnected *bool    `json:"databaseConnected,omitempty"`
	NATSConnected     *bool    `json:"natsConnected,omitempty"`
	RoundStatus       string   `json:"roundStatus,omitempty"`
	Connections       int      `json:"connections"`
	Errors            []string `json:"errors"`
}

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

type RoundSource interface {
	GetGameState(ctx context.Context) (*models.GameState, error)
}

type ConnectionCounter interface {
	ConnectionCount() int
}

// Checker reports whether this instance can serve the game
type Checker struct {
	db     Pinger
	nc     *nats.Conn
	rounds RoundSource
	conns  ConnectionCounter
}

// NewChecker creates a checker. db and nc may be nil when not configured.
func NewChecker(db Pinger, nc *nats.Conn, rounds RoundSource, conns ConnectionCounter) *Checker {
	return &Checker{
		db:     db,
		nc:     nc,
		rounds: rounds,
		conns:  conns,
	}
}

func (h *Checker) Check(ctx context.Context) Status {
	status := Status{
		Healthy: true,
		Errors:  []string{},
	}

	if h.db != nil {
		connected := true
		if err := h.db.Ping(ctx); err != nil {
			connected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
		}
		status.DatabaseConnected = &connected
	}

	if h.nc != nil {
		connected := h.nc.IsConnected()
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
		status.NATSConnected = &connected
	}

	if state, err := h.rounds.GetGameState(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("game state unavailable: %v", err))
	} else {
		status.RoundStatus = string(state.Status)
	}

	if h.conns != nil {
		status.Connections = h.conns.ConnectionCount()
	}

	return status
}

func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode health status")
	}
}
