package game_client

import (
	"github.com/mcdev12/lastbuyer/go/internal/game/events"
	"github.com/mcdev12/lastbuyer/go/internal/models"
)

// Wire types shared with the server, re-exported so callers outside this module can name them.
type (
	Amount       = models.Amount
	GameState    = models.GameState
	PlayerState  = models.PlayerState
	PlayerStatus = models.PlayerStatus
	BuyEvent     = models.BuyEvent
	ChatMessage  = models.ChatMessage
	ChatRequest  = models.ChatRequest
	BuyResult    = models.BuyResult
	ChatResult   = models.ChatResult

	Event           = events.Event
	EventType       = events.EventType
	GameOverPayload = events.GameOverPayload
)

const (
	EventTypeGameUpdate   = events.EventTypeGameUpdate
	EventTypeNewBuy       = events.EventTypeNewBuy
	EventTypeChatMessage  = events.EventTypeChatMessage
	EventTypePlayerUpdate = events.EventTypePlayerUpdate
	EventTypeGameOver     = events.EventTypeGameOver
)
