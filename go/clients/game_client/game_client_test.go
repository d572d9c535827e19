package game_client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/lastbuyer/go/clients"
	"github.com/mcdev12/lastbuyer/go/internal/game"
	"github.com/mcdev12/lastbuyer/go/internal/game/gateway"
	"github.com/mcdev12/lastbuyer/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGameServer(t *testing.T) *httptest.Server {
	t.Helper()
	gw := gateway.NewService(gateway.DefaultConfig(), nil)
	app := game.NewApp(game.NewMemoryRepository(0), gw, clockwork.NewRealClock(), game.DefaultRules())
	gw.SetPlayerProvider(app)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := app.StartRound(ctx)
	require.NoError(t, err)
	go gw.Start(ctx)

	mux := http.NewServeMux()
	game.NewService(app).RegisterRoutes(mux)
	gw.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func TestGameClient_ValidationHappensBeforeNetwork(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()
	client := NewGameClient(srv.URL)
	ctx := context.Background()

	_, err := client.GetPlayerData(ctx, "")
	assert.ErrorIs(t, err, ErrAddressRequired)
	_, err = client.SubmitBuyTransaction(ctx, "")
	assert.ErrorIs(t, err, ErrAddressRequired)
	_, err = client.SendChatMessage(ctx, ChatRequest{Address: "alice"})
	assert.ErrorIs(t, err, ErrAddressMessageRequired)
	_, err = client.SendChatMessage(ctx, ChatRequest{Message: "hi"})
	assert.EqualError(t, err, "address and message are required")

	assert.Zero(t, calls)
}

func TestGameClient_StatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"round is over"}`))
	}))
	defer srv.Close()
	client := NewGameClient(srv.URL)
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func() error
		wantMsg string
	}{
		{name: "game state", wantMsg: "failed to fetch game data", call: func() error {
			_, err := client.GetGameState(ctx)
			return err
		}},
		{name: "player", wantMsg: "failed to fetch player data", call: func() error {
			_, err := client.GetPlayerData(ctx, "alice")
			return err
		}},
		{name: "buy", wantMsg: "failed to process buy", call: func() error {
			_, err := client.SubmitBuyTransaction(ctx, "alice")
			return err
		}},
		{name: "chat", wantMsg: "failed to send message", call: func() error {
			_, err := client.SendChatMessage(ctx, ChatRequest{Address: "alice", Message: "hi"})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			var statusErr *clients.StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, http.StatusConflict, statusErr.StatusCode)
			assert.Contains(t, statusErr.Body, "round is over")
		})
	}
}

func TestGameClient_FeedURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{base: "http://localhost:3000", want: "ws://localhost:3000/ws"},
		{base: "https://example.com/", want: "wss://example.com/ws"},
		{base: "https://example.com/game", want: "wss://example.com/game/ws"},
		{base: "ftp://example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := NewGameClient(tt.base).FeedURL()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGameClient_RoundTrip(t *testing.T) {
	srv := newGameServer(t)
	client := NewGameClient(srv.URL)
	ctx := context.Background()

	state, err := client.GetGameState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.00", state.PrizePool.String())

	result, err := client.SubmitBuyTransaction(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "alice", result.GameData.LastBuyer)
	assert.Equal(t, models.PlayerStatusWinning, result.PlayerData.Status)

	player, err := client.GetPlayerData(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.PlayerStatusNotBought, player.Status)

	chat, err := client.SendChatMessage(ctx, ChatRequest{Address: "bob", Message: "gm"})
	require.NoError(t, err)
	assert.True(t, chat.Success)
	assert.Equal(t, "gm", chat.ChatData.Message)
}

func TestGameClient_Feed(t *testing.T) {
	srv := newGameServer(t)
	client := NewGameClient(srv.URL)
	defer client.Close()
	ctx := context.Background()

	assert.ErrorIs(t, client.Subscribe("alice"), ErrNotConnected)

	received := make(chan *Event, 16)
	feed, err := client.ConnectFeed(ctx, func(e *Event) { received <- e })
	require.NoError(t, err)

	next := func() *Event {
		select {
		case e := <-received:
			return e
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for feed event")
			return nil
		}
	}

	require.NoError(t, client.Subscribe("alice"))
	e := next()
	require.Equal(t, EventTypePlayerUpdate, e.Type)
	assert.Equal(t, models.PlayerStatusNotBought, e.PlayerData.Status)

	_, err = client.SubmitBuyTransaction(ctx, "alice")
	require.NoError(t, err)

	seen := map[EventType]*Event{}
	for len(seen) < 3 {
		e := next()
		seen[e.Type] = e
	}
	assert.Equal(t, "alice", seen[EventTypeNewBuy].BuyData.Address)
	assert.Equal(t, "10.00", seen[EventTypeGameUpdate].GameData.PrizePool.String())
	assert.Equal(t, models.PlayerStatusWinning, seen[EventTypePlayerUpdate].PlayerData.Status)

	require.NoError(t, client.Close())
	select {
	case <-feed.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop after Close")
	}
	assert.ErrorIs(t, client.Unsubscribe(), ErrNotConnected)
}
