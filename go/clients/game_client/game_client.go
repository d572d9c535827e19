package game_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/lastbuyer/go/clients"
	"github.com/mcdev12/lastbuyer/go/internal/models"
)

var (
	ErrAddressRequired        = errors.New("address is required")
	ErrAddressMessageRequired = errors.New("address and message are required")
)

// GameClient talks to the game API over HTTP and to the push feed over WebSocket
type GameClient struct {
	*clients.BaseClient
	apiEndpoint string
	dialer      *websocket.Dialer

	mu   sync.Mutex
	feed *Feed
}

// Option customises a GameClient
type Option func(*GameClient)

// WithAPIEndpoint overrides the API mount point (default /api)
func WithAPIEndpoint(endpoint string) Option {
	return func(c *GameClient) {
		c.apiEndpoint = "/" + strings.Trim(endpoint, "/")
	}
}

// WithDialer overrides the WebSocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(c *GameClient) {
		c.dialer = d
	}
}

func NewGameClient(baseURL string, opts ...Option) *GameClient {
	client := &GameClient{
		BaseClient:  clients.NewBaseClient(baseURL),
		apiEndpoint: DefaultAPIEndpoint,
		dialer:      websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// GetGameState fetches the current round
func (c *GameClient) GetGameState(ctx context.Context) (*GameState, error) {
	body, err := c.Get(ctx, c.apiEndpoint+GameStateEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch game data: %w", err)
	}

	var state GameState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game data: %w", err)
	}
	return &state, nil
}

// GetPlayerData fetches a player's standing
func (c *GameClient) GetPlayerData(ctx context.Context, address string) (*PlayerState, error) {
	if address == "" {
		return nil, ErrAddressRequired
	}

	body, err := c.Get(ctx, c.apiEndpoint+PlayerEndpoint+url.PathEscape(address))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch player data: %w", err)
	}

	var player PlayerState
	if err := json.Unmarshal(body, &player); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player data: %w", err)
	}
	return &player, nil
}

// SubmitBuyTransaction buys in as address
func (c *GameClient) SubmitBuyTransaction(ctx context.Context, address string) (*BuyResult, error) {
	if address == "" {
		return nil, ErrAddressRequired
	}

	payload, err := json.Marshal(models.BuyRequest{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal buy request: %w", err)
	}

	body, err := c.Post(ctx, c.apiEndpoint+BuyEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to process buy: %w", err)
	}

	var result BuyResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal buy result: %w", err)
	}
	return &result, nil
}

// SendChatMessage posts a chat line
func (c *GameClient) SendChatMessage(ctx context.Context, msg ChatRequest) (*ChatResult, error) {
	if msg.Address == "" || msg.Message == "" {
		return nil, ErrAddressMessageRequired
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat message: %w", err)
	}

	body, err := c.Post(ctx, c.apiEndpoint+ChatEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	var result ChatResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat result: %w", err)
	}
	return &result, nil
}

// FeedURL derives the WebSocket URL from the base URL
func (c *GameClient) FeedURL() (string, error) {
	u, err := url.Parse(c.BaseURL())
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + FeedEndpoint
	return u.String(), nil
}
