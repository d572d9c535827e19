package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mcdev12/lastbuyer/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlayerUpdate_TargetsAddress(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	e := NewPlayerUpdate(&models.PlayerState{Address: "0x01", Status: models.PlayerStatusWinning}, now)

	assert.Equal(t, EventTypePlayerUpdate, e.Type)
	assert.Equal(t, "0x01", e.Target)
	assert.Equal(t, int64(1700000000000), e.Timestamp)
	assert.NotEmpty(t, e.ID)
}

func TestEvent_JSONShape(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	e := NewChatMessage(&models.ChatMessage{Address: "0x02", Message: "WAGMI", Timestamp: 1700000000000}, now)

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "chatMessage", raw["type"])
	assert.Contains(t, raw, "chatData")
	assert.NotContains(t, raw, "gameData")
	assert.NotContains(t, raw, "target")
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "game.events.newBuy", Subject(DefaultSubjectPrefix, EventTypeNewBuy))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), NewGameUpdate(&models.GameState{}, time.Now())))
}
