package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/lastbuyer/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRound() *models.Round {
	return &models.Round{
		ID:        uuid.New(),
		Status:    models.RoundStatusActive,
		StartedAt: startTime,
		EndsAt:    startTime.Add(time.Hour),
	}
}

func TestMemoryRepository_CurrentRound(t *testing.T) {
	repo := NewMemoryRepository(10)
	ctx := context.Background()

	_, err := repo.CurrentRound(ctx)
	assert.ErrorIs(t, err, ErrNoRound)

	first := newRound()
	require.NoError(t, repo.CreateRound(ctx, first))
	second := newRound()
	assert.ErrorIs(t, repo.CreateRound(ctx, second), ErrRoundActive)

	_, err = repo.UpdateRound(ctx, first.ID, func(r *models.Round) error {
		r.Status = models.RoundStatusEnded
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, repo.CreateRound(ctx, second))

	current, err := repo.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	assert.Error(t, repo.CreateRound(ctx, second))
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository(10)
	ctx := context.Background()
	round := newRound()
	require.NoError(t, repo.CreateRound(ctx, round))

	round.LastBuyer = "mutated"
	current, err := repo.CurrentRound(ctx)
	require.NoError(t, err)
	current.PrizePool = 999

	again, err := repo.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.LastBuyer)
	assert.Equal(t, models.Amount(0), again.PrizePool)
}

func TestMemoryRepository_UpdateRoundErrorLeavesRoundUntouched(t *testing.T) {
	repo := NewMemoryRepository(10)
	ctx := context.Background()
	round := newRound()
	require.NoError(t, repo.CreateRound(ctx, round))

	boom := errors.New("boom")
	_, err := repo.UpdateRound(ctx, round.ID, func(r *models.Round) error {
		r.Status = models.RoundStatusEnded
		return boom
	})
	assert.ErrorIs(t, err, boom)

	current, err := repo.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusActive, current.Status)

	_, err = repo.UpdateRound(ctx, uuid.New(), func(*models.Round) error { return nil })
	assert.ErrorIs(t, err, ErrNoRound)
}

func TestMemoryRepository_ConcurrentBuys(t *testing.T) {
	repo := NewMemoryRepository(10)
	ctx := context.Background()
	round := newRound()
	require.NoError(t, repo.CreateRound(ctx, round))

	const buyers = 50
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			address := fmt.Sprintf("player-%d", i%5)
			_, _, err := repo.ApplyBuy(ctx, round.ID, func(r *models.Round) (*models.BuyEvent, error) {
				r.PrizePool += 100
				r.BuyCount++
				r.LastBuyer = address
				return &models.BuyEvent{RoundID: r.ID, Address: address, Amount: 100}, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	current, err := repo.CurrentRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, buyers, current.BuyCount)
	assert.Equal(t, models.Amount(buyers*100), current.PrizePool)

	count, err := repo.CountBuys(ctx, round.ID, "player-0")
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestMemoryRepository_Chat(t *testing.T) {
	repo := NewMemoryRepository(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AppendChat(ctx, &models.ChatMessage{
			ID:      uuid.New(),
			Address: "alice",
			Message: fmt.Sprintf("msg-%d", i),
		}))
	}

	all, err := repo.RecentChat(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "msg-2", all[0].Message)
	assert.Equal(t, "msg-4", all[2].Message)

	last, err := repo.RecentChat(ctx, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "msg-3", last[0].Message)
}
