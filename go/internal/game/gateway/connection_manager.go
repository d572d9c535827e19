package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/lastbuyer/go/internal/game/events"
	"github.com/mcdev12/lastbuyer/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrBroadcastFull is returned when the broadcast queue cannot take another event
var ErrBroadcastFull = errors.New("broadcast channel full")

// PlayerProvider looks up a player's standing for subscribe replies
type PlayerProvider interface {
	GetPlayer(ctx context.Context, address string) (*models.PlayerState, error)
}

// ConnectionManager manages WebSocket connections for game events
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	// Event broadcasting
	broadcastCh chan *events.Event

	players   PlayerProvider
	playersMu sync.RWMutex
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// Connection metadata
	ConnectedAt time.Time
	RemoteAddr  string

	limiter *rate.Limiter

	mu      sync.Mutex
	address string
	closed  bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	// InboundRate and InboundBurst throttle client messages per connection
	InboundRate  rate.Limit
	InboundBurst int
	// AllowedOrigins lists browser origins besides the server's own host.
	// CheckOrigin, when set, replaces the origin check entirely.
	AllowedOrigins []string
	CheckOrigin    func(r *http.Request) bool
}

// ClientMessage is a command sent by the browser over the socket
type ClientMessage struct {
	Action  string `json:"action"`
	Address string `json:"address,omitempty"`
}

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// ErrorMessage is sent back when a client command cannot be served
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Stats describes the live connection set
type Stats struct {
	TotalConnections      int `json:"totalConnections"`
	SubscribedConnections int `json:"subscribedConnections"`
	SubscribedAddresses   int `json:"subscribedAddresses"`
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024, // 1KB max message size
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		InboundRate:     rate.Limit(5),
		InboundBurst:    10,
	}
}

// OriginChecker accepts upgrades without an Origin header, from the request's own host,
// or from one of the allowed origins
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if set[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = OriginChecker(config.AllowedOrigins)
	}
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan *events.Event, 1000), // Buffer for high throughput
	}
}

// SetPlayerProvider wires the lookup used to answer subscribe commands
func (cm *ConnectionManager) SetPlayerProvider(p PlayerProvider) {
	cm.playersMu.Lock()
	defer cm.playersMu.Unlock()
	cm.players = p
}

func (cm *ConnectionManager) playerProvider() PlayerProvider {
	cm.playersMu.RLock()
	defer cm.playersMu.RUnlock()
	return cm.players
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case event := <-cm.broadcastCh:
			cm.handleBroadcast(event)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket. A non-empty address
// subscribes the connection right away.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, address string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
		RemoteAddr:  r.RemoteAddr,
		limiter:     rate.NewLimiter(cm.config.InboundRate, cm.config.InboundBurst),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", connection.RemoteAddr).
		Msg("WebSocket connection established")

	if address != "" {
		connection.subscribe(address)
	}
	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn]
	delete(cm.connections, conn)
	cm.mu.Unlock()

	if !exists {
		return
	}
	conn.closeSend()

	log.Info().
		Str("connection_id", conn.ID).
		Str("address", conn.Address()).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
	}
}

// Broadcast queues an event for delivery. Events with a Target only reach connections
// subscribed to that address.
func (cm *ConnectionManager) Broadcast(event *events.Event) error {
	select {
	case cm.broadcastCh <- event:
		return nil
	default:
		log.Warn().Str("event_type", string(event.Type)).Msg("broadcast channel full, dropping message")
		return ErrBroadcastFull
	}
}

// Publish implements events.Publisher so the game app can push straight into the hub
func (cm *ConnectionManager) Publish(_ context.Context, event *events.Event) error {
	return cm.Broadcast(event)
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(event *events.Event) {
	cm.mu.RLock()
	// Snapshot connections to avoid holding the lock during delivery
	var targetConnections []*Connection
	for conn := range cm.connections {
		if event.Target != "" && conn.Address() != event.Target {
			continue
		}
		targetConnections = append(targetConnections, conn)
	}
	cm.mu.RUnlock()

	if len(targetConnections) == 0 {
		return
	}

	// Marshal the event once
	eventData, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targetConnections {
		if !conn.trySend(eventData) {
			log.Warn().
				Str("connection_id", conn.ID).
				Str("address", conn.Address()).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Str("target", event.Target).
		Int("connections", len(targetConnections)).
		Msg("event broadcasted")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() Stats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := Stats{TotalConnections: len(cm.connections)}
	addresses := make(map[string]struct{})
	for conn := range cm.connections {
		if addr := conn.Address(); addr != "" {
			stats.SubscribedConnections++
			addresses[addr] = struct{}{}
		}
	}
	stats.SubscribedAddresses = len(addresses)
	return stats
}

// Address returns the wallet address the connection is subscribed to, if any
func (c *Connection) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

func (c *Connection) setAddress(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = address
}

// trySend queues data without blocking. It reports false when the buffer is full.
func (c *Connection) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Connection) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal message")
		return
	}
	if !c.trySend(data) {
		log.Warn().Str("connection_id", c.ID).Msg("connection send buffer full, dropping reply")
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		if !c.limiter.Allow() {
			log.Warn().Str("connection_id", c.ID).Msg("client message rate exceeded, dropping message")
			continue
		}
		c.handleClientMessage(message)
	}
}

// handleClientMessage processes messages received from the client
func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendJSON(ErrorMessage{Type: "error", Error: "invalid message"})
		return
	}

	switch msg.Action {
	case ActionSubscribe:
		c.subscribe(msg.Address)
	case ActionUnsubscribe:
		c.setAddress("")
		log.Debug().Str("connection_id", c.ID).Msg("connection unsubscribed")
	default:
		c.sendJSON(ErrorMessage{Type: "error", Error: fmt.Sprintf("unknown action %q", msg.Action)})
	}
}

// subscribe tags the connection with address and replies with that player's standing
func (c *Connection) subscribe(address string) {
	players := c.Manager.playerProvider()
	if players == nil {
		c.setAddress(address)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.WriteTimeout)
	defer cancel()

	player, err := players.GetPlayer(ctx, address)
	if err != nil {
		c.sendJSON(ErrorMessage{Type: "error", Error: err.Error()})
		return
	}

	c.setAddress(player.Address)
	c.sendJSON(events.NewPlayerUpdate(player, time.Now()))

	log.Debug().
		Str("connection_id", c.ID).
		Str("address", player.Address).
		Msg("connection subscribed")
}
