package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/lastbuyer/go/internal/game/events"
	"github.com/mcdev12/lastbuyer/go/internal/models"
	"github.com/rs/zerolog/log"
)

const maxAddressLength = 128

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// App handles the last-buyer-wins round logic
type App struct {
	repo      GameRepository
	publisher events.Publisher
	clock     Clock
	rules     Rules
}

// NewApp creates a new game App
func NewApp(repo GameRepository, publisher events.Publisher, clock Clock, rules Rules) *App {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:      repo,
		publisher: publisher,
		clock:     clock,
		rules:     rules.withDefaults(),
	}
}

// GetGameState returns the public view of the current round
func (a *App) GetGameState(ctx context.Context) (*models.GameState, error) {
	round, err := a.repo.CurrentRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current round: %w", err)
	}
	return models.NewGameState(round, a.clock.Now()), nil
}

// GetPlayer returns the standing of address in the current round
func (a *App) GetPlayer(ctx context.Context, address string) (*models.PlayerState, error) {
	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}

	round, err := a.repo.CurrentRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current round: %w", err)
	}

	return a.playerState(ctx, round, address)
}

// Buy makes address the last buyer, grows the prize pool and extends the countdown
func (a *App) Buy(ctx context.Context, address string) (*models.BuyResult, error) {
	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}

	current, err := a.repo.CurrentRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current round: %w", err)
	}

	now := a.clock.Now()
	var previous string
	round, buy, err := a.repo.ApplyBuy(ctx, current.ID, func(r *models.Round) (*models.BuyEvent, error) {
		if r.Status != models.RoundStatusActive || r.Expired(now) {
			return nil, ErrRoundOver
		}
		previous = r.LastBuyer
		r.PrizePool += a.rules.BuyPrice
		r.LastBuyer = address
		r.BuyCount++
		r.EndsAt = a.extendDeadline(r.EndsAt, now)
		return &models.BuyEvent{
			RoundID:   r.ID,
			Address:   address,
			Amount:    a.rules.BuyPrice,
			Timestamp: now.UnixMilli(),
		}, nil
	})
	if err != nil {
		if errors.Is(err, ErrRoundOver) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to apply buy: %w", err)
	}

	player, err := a.playerState(ctx, round, address)
	if err != nil {
		return nil, err
	}
	state := models.NewGameState(round, now)

	log.Info().
		Str("round_id", round.ID.String()).
		Str("address", address).
		Str("prize_pool", round.PrizePool.String()).
		Time("ends_at", round.EndsAt).
		Msg("buy applied")

	a.publish(ctx,
		events.NewBuy(buy, now),
		events.NewGameUpdate(state, now),
		events.NewPlayerUpdate(player, now),
	)

	if previous != "" && previous != address {
		if outbid, err := a.playerState(ctx, round, previous); err != nil {
			log.Error().Err(err).Str("address", previous).Msg("failed to load outbid player")
		} else {
			a.publish(ctx, events.NewPlayerUpdate(outbid, now))
		}
	}

	return &models.BuyResult{
		Success:    true,
		GameData:   state,
		PlayerData: player,
		BuyData:    buy,
	}, nil
}

// SendChat validates and stores a chat message, then pushes it to clients
func (a *App) SendChat(ctx context.Context, req models.ChatRequest) (*models.ChatMessage, error) {
	address := strings.TrimSpace(req.Address)
	text := strings.TrimSpace(req.Message)
	if address == "" || text == "" {
		return nil, ErrChatFieldsRequired
	}
	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(text) > a.rules.ChatMaxLength {
		return nil, fmt.Errorf("%w: limit is %d characters", ErrMessageTooLong, a.rules.ChatMaxLength)
	}

	now := a.clock.Now()
	msg := &models.ChatMessage{
		ID:        uuid.New(),
		Address:   address,
		Message:   text,
		Timestamp: now.UnixMilli(),
	}
	if err := a.repo.AppendChat(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store chat message: %w", err)
	}

	log.Debug().Str("address", address).Int("length", len(text)).Msg("chat message stored")
	a.publish(ctx, events.NewChatMessage(msg, now))
	return msg, nil
}

// RecentChat returns the retained chat history, oldest first
func (a *App) RecentChat(ctx context.Context) ([]models.ChatMessage, error) {
	msgs, err := a.repo.RecentChat(ctx, a.rules.ChatHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	return msgs, nil
}

// StartRound opens a new round. It fails with ErrRoundActive while the current round runs.
func (a *App) StartRound(ctx context.Context) (*models.Round, error) {
	round, err := a.startRound(ctx)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now()
	a.publish(ctx, events.NewGameUpdate(models.NewGameState(round, now), now))
	return round, nil
}

// startRound settles an expired round and creates the next one. The repository rejects the
// insert when another instance got there first.
func (a *App) startRound(ctx context.Context) (*models.Round, error) {
	now := a.clock.Now()

	current, err := a.repo.CurrentRound(ctx)
	switch {
	case errors.Is(err, ErrNoRound):
	case err != nil:
		return nil, fmt.Errorf("failed to get current round: %w", err)
	case current.Status == models.RoundStatusActive && !current.Expired(now):
		return nil, ErrRoundActive
	case current.Status == models.RoundStatusActive:
		if _, err := a.settle(ctx, current.ID, now); err != nil {
			return nil, err
		}
	}

	round := &models.Round{
		ID:        uuid.New(),
		Status:    models.RoundStatusActive,
		PrizePool: a.rules.SeedPool,
		StartedAt: now,
		EndsAt:    now.Add(a.rules.RoundDuration),
	}
	if err := a.repo.CreateRound(ctx, round); err != nil {
		if errors.Is(err, ErrRoundActive) {
			return nil, ErrRoundActive
		}
		return nil, fmt.Errorf("failed to create round: %w", err)
	}

	log.Info().
		Str("round_id", round.ID.String()).
		Time("ends_at", round.EndsAt).
		Msg("round started")
	return round, nil
}

// EnsureRound returns the current round, starting the first one if none exists
func (a *App) EnsureRound(ctx context.Context) (*models.Round, error) {
	round, err := a.repo.CurrentRound(ctx)
	if errors.Is(err, ErrNoRound) {
		return a.restart(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current round: %w", err)
	}
	return round, nil
}

// Tick settles an expired round, restarts after the restart delay, and pushes a gameUpdate
func (a *App) Tick(ctx context.Context) error {
	round, err := a.EnsureRound(ctx)
	if err != nil {
		return err
	}

	now := a.clock.Now()
	if round.Status == models.RoundStatusActive && round.Expired(now) {
		if round, err = a.settle(ctx, round.ID, now); err != nil {
			return err
		}
	}

	if round.Status == models.RoundStatusEnded && a.rules.RestartDelay > 0 && round.EndedAt != nil &&
		!now.Before(round.EndedAt.Add(a.rules.RestartDelay)) {
		if round, err = a.restart(ctx); err != nil {
			return err
		}
	}

	a.publish(ctx, events.NewGameUpdate(models.NewGameState(round, now), now))
	return nil
}

// restart starts a round, or returns the round another instance just started
func (a *App) restart(ctx context.Context) (*models.Round, error) {
	round, err := a.startRound(ctx)
	if errors.Is(err, ErrRoundActive) {
		log.Debug().Msg("round already restarted elsewhere")
		round, err = a.repo.CurrentRound(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get current round: %w", err)
		}
	}
	return round, err
}

// settle ends the round and announces the winner. It is a no-op on an already settled round.
func (a *App) settle(ctx context.Context, id uuid.UUID, now time.Time) (*models.Round, error) {
	settled := false
	round, err := a.repo.UpdateRound(ctx, id, func(r *models.Round) error {
		if r.Status != models.RoundStatusActive {
			return nil
		}
		endedAt := r.EndsAt
		r.Status = models.RoundStatusEnded
		r.EndedAt = &endedAt
		r.Winner = r.LastBuyer
		settled = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle round: %w", err)
	}

	if settled {
		log.Info().
			Str("round_id", round.ID.String()).
			Str("winner", round.Winner).
			Str("prize_pool", round.PrizePool.String()).
			Int("buys", round.BuyCount).
			Msg("round settled")

		a.publish(ctx, events.NewGameOver(&events.GameOverPayload{
			RoundID:   round.ID.String(),
			Winner:    round.Winner,
			PrizePool: round.PrizePool,
			BuyCount:  round.BuyCount,
			EndedAt:   round.EndedAt.UnixMilli(),
		}, now))
	}
	return round, nil
}

func (a *App) playerState(ctx context.Context, round *models.Round, address string) (*models.PlayerState, error) {
	count, err := a.repo.CountBuys(ctx, round.ID, address)
	if err != nil {
		return nil, fmt.Errorf("failed to count buys: %w", err)
	}

	status := models.PlayerStatusNotBought
	switch {
	case round.LastBuyer == address:
		status = models.PlayerStatusWinning
	case count > 0:
		status = models.PlayerStatusLosing
	}

	return &models.PlayerState{
		Address:  address,
		Status:   status,
		BuyCount: count,
	}, nil
}

// extendDeadline pushes the deadline out by the buy extension, capped at MaxCountdown from now.
// A buy never shortens the countdown.
func (a *App) extendDeadline(endsAt, now time.Time) time.Time {
	next := endsAt.Add(a.rules.BuyExtension)
	if limit := now.Add(a.rules.MaxCountdown); next.After(limit) {
		next = limit
	}
	if next.Before(endsAt) {
		return endsAt
	}
	return next
}

// publish pushes events in order. Delivery failures are logged, never returned.
// The state change is already committed, so a cancelled request must not stop delivery.
func (a *App) publish(ctx context.Context, evs ...*events.Event) {
	ctx = context.WithoutCancel(ctx)
	for _, e := range evs {
		if err := a.publisher.Publish(ctx, e); err != nil {
			log.Error().Err(err).Str("event_type", string(e.Type)).Msg("failed to publish game event")
		}
	}
}

func normalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrAddressRequired
	}
	if len(address) > maxAddressLength || strings.IndexFunc(address, unicode.IsSpace) >= 0 {
		return "", ErrInvalidAddress
	}
	return address, nil
}
