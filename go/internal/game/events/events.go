package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/lastbuyer/go/internal/models"
)

// EventType represents the type of game event pushed to clients
type EventType string

const (
	EventTypeGameUpdate   EventType = "gameUpdate"
	EventTypeNewBuy       EventType = "newBuy"
	EventTypeChatMessage  EventType = "chatMessage"
	EventTypePlayerUpdate EventType = "playerUpdate"
	EventTypeGameOver     EventType = "gameOver"
)

// Event is the envelope for everything sent over the push channel.
// Exactly one of the data fields is set, matching Type.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`

	// Target restricts delivery to connections subscribed to this address.
	Target string `json:"target,omitempty"`

	GameData     *models.GameState   `json:"gameData,omitempty"`
	BuyData      *models.BuyEvent    `json:"buyData,omitempty"`
	ChatData     *models.ChatMessage `json:"chatData,omitempty"`
	PlayerData   *models.PlayerState `json:"playerData,omitempty"`
	GameOverData *GameOverPayload    `json:"gameOverData,omitempty"`
}

// GameOverPayload is the payload for a gameOver event
type GameOverPayload struct {
	RoundID   string        `json:"roundId"`
	Winner    string        `json:"winner"`
	PrizePool models.Amount `json:"prizePool"`
	BuyCount  int           `json:"buyCount"`
	EndedAt   int64         `json:"endedAt"`
}

func newEvent(t EventType, now time.Time) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: now.UnixMilli(),
	}
}

// NewGameUpdate wraps a game state snapshot
func NewGameUpdate(state *models.GameState, now time.Time) *Event {
	e := newEvent(EventTypeGameUpdate, now)
	e.GameData = state
	return e
}

// NewBuy wraps a buy
func NewBuy(buy *models.BuyEvent, now time.Time) *Event {
	e := newEvent(EventTypeNewBuy, now)
	e.BuyData = buy
	return e
}

// NewChatMessage wraps a chat line
func NewChatMessage(msg *models.ChatMessage, now time.Time) *Event {
	e := newEvent(EventTypeChatMessage, now)
	e.ChatData = msg
	return e
}

// NewPlayerUpdate wraps a player's standing and targets it at that player's connections
func NewPlayerUpdate(player *models.PlayerState, now time.Time) *Event {
	e := newEvent(EventTypePlayerUpdate, now)
	e.PlayerData = player
	e.Target = player.Address
	return e
}

// NewGameOver announces a settled round
func NewGameOver(payload *GameOverPayload, now time.Time) *Event {
	e := newEvent(EventTypeGameOver, now)
	e.GameOverData = payload
	return e
}
