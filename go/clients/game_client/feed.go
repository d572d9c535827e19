package game_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned when the feed is used before ConnectFeed or after Close
var ErrNotConnected = errors.New("feed is not connected")

// EventHandler receives every event pushed by the server
type EventHandler func(*Event)

type clientMessage struct {
	Action  string `json:"action"`
	Address string `json:"address,omitempty"`
}

// Feed is a live connection to the push channel
type Feed struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
}

// ConnectFeed dials the push channel and delivers decoded events to handler until the
// connection closes. It returns once the connection is open.
func (c *GameClient) ConnectFeed(ctx context.Context, handler EventHandler) (*Feed, error) {
	feedURL, err := c.FeedURL()
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect feed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	feed := &Feed{
		conn: conn,
		done: make(chan struct{}),
	}
	go feed.readLoop(handler)

	c.mu.Lock()
	previous := c.feed
	c.feed = feed
	c.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	log.Info().Str("url", feedURL).Msg("game feed connected")
	return feed, nil
}

// Subscribe asks the server for targeted updates about address
func (c *GameClient) Subscribe(address string) error {
	if address == "" {
		return ErrAddressRequired
	}
	feed := c.currentFeed()
	if feed == nil {
		return ErrNotConnected
	}
	return feed.send(clientMessage{Action: "subscribe", Address: address})
}

// Unsubscribe stops targeted updates
func (c *GameClient) Unsubscribe() error {
	feed := c.currentFeed()
	if feed == nil {
		return ErrNotConnected
	}
	return feed.send(clientMessage{Action: "unsubscribe"})
}

// Close closes the feed, if any
func (c *GameClient) Close() error {
	c.mu.Lock()
	feed := c.feed
	c.feed = nil
	c.mu.Unlock()

	if feed == nil {
		return nil
	}
	return feed.Close()
}

func (c *GameClient) currentFeed() *Feed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feed
}

// Done is closed when the connection ends
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// Close sends a close frame and tears the connection down
func (f *Feed) Close() error {
	f.writeMu.Lock()
	_ = f.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	f.writeMu.Unlock()
	return f.conn.Close()
}

func (f *Feed) send(msg clientMessage) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if err := f.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Action, err)
	}
	return nil
}

func (f *Feed) readLoop(handler EventHandler) {
	defer close(f.done)

	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Msg("game feed closed unexpectedly")
			}
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			log.Warn().Err(err).Msg("failed to decode feed message")
			continue
		}
		if event.Type == "" {
			log.Debug().RawJSON("message", data).Msg("ignoring untyped feed message")
			continue
		}
		handler(&event)
	}
}
