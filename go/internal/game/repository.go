package game

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/lastbuyer/go/internal/models"
)

// BuyFunc mutates the locked round and returns the buy to record
type BuyFunc func(r *models.Round) (*models.BuyEvent, error)

// GameRepository defines what the app layer needs from storage
type GameRepository interface {
	CurrentRound(ctx context.Context) (*models.Round, error)
	// CreateRound must fail with ErrRoundActive when an unsettled round exists
	CreateRound(ctx context.Context, round *models.Round) error
	UpdateRound(ctx context.Context, id uuid.UUID, fn func(r *models.Round) error) (*models.Round, error)
	ApplyBuy(ctx context.Context, id uuid.UUID, fn BuyFunc) (*models.Round, *models.BuyEvent, error)
	CountBuys(ctx context.Context, roundID uuid.UUID, address string) (int, error)
	AppendChat(ctx context.Context, msg *models.ChatMessage) error
	RecentChat(ctx context.Context, limit int) ([]models.ChatMessage, error)
}

// MemoryRepository keeps game state in process. State is lost on restart.
type MemoryRepository struct {
	mu      sync.Mutex
	rounds  map[uuid.UUID]*models.Round
	current uuid.UUID
	buys    map[uuid.UUID]map[string]int
	chat    []models.ChatMessage
	chatCap int
}

// NewMemoryRepository creates an in-memory repository that retains chatCap chat messages
func NewMemoryRepository(chatCap int) *MemoryRepository {
	if chatCap <= 0 {
		chatCap = DefaultRules().ChatHistory
	}
	return &MemoryRepository{
		rounds:  make(map[uuid.UUID]*models.Round),
		buys:    make(map[uuid.UUID]map[string]int),
		chatCap: chatCap,
	}
}

// CurrentRound returns a copy of the most recently created round
func (r *MemoryRepository) CurrentRound(ctx context.Context) (*models.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	round, ok := r.rounds[r.current]
	if !ok {
		return nil, ErrNoRound
	}
	return copyRound(round), nil
}

// CreateRound stores round and makes it current. It fails with ErrRoundActive while the
// current round has not been settled.
func (r *MemoryRepository) CreateRound(ctx context.Context, round *models.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rounds[round.ID]; exists {
		return fmt.Errorf("round %s already exists", round.ID)
	}
	if current, ok := r.rounds[r.current]; ok && current.Status == models.RoundStatusActive {
		return ErrRoundActive
	}
	r.rounds[round.ID] = copyRound(round)
	r.buys[round.ID] = make(map[string]int)
	r.current = round.ID
	return nil
}

// UpdateRound applies fn to the round under the repository lock
func (r *MemoryRepository) UpdateRound(ctx context.Context, id uuid.UUID, fn func(r *models.Round) error) (*models.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rounds[id]
	if !ok {
		return nil, ErrNoRound
	}

	working := copyRound(stored)
	if err := fn(working); err != nil {
		return nil, err
	}
	r.rounds[id] = working
	return copyRound(working), nil
}

// ApplyBuy applies fn and records the resulting buy in one critical section
func (r *MemoryRepository) ApplyBuy(ctx context.Context, id uuid.UUID, fn BuyFunc) (*models.Round, *models.BuyEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rounds[id]
	if !ok {
		return nil, nil, ErrNoRound
	}

	working := copyRound(stored)
	buy, err := fn(working)
	if err != nil {
		return nil, nil, err
	}
	r.rounds[id] = working
	r.buys[id][buy.Address]++
	return copyRound(working), buy, nil
}

// CountBuys returns how many times address bought in the round
func (r *MemoryRepository) CountBuys(ctx context.Context, roundID uuid.UUID, address string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buys[roundID][address], nil
}

// AppendChat stores msg, evicting the oldest message past capacity
func (r *MemoryRepository) AppendChat(ctx context.Context, msg *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chat = append(r.chat, *msg)
	if over := len(r.chat) - r.chatCap; over > 0 {
		r.chat = append([]models.ChatMessage(nil), r.chat[over:]...)
	}
	return nil
}

// RecentChat returns up to limit messages, oldest first
func (r *MemoryRepository) RecentChat(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := 0
	if limit > 0 && len(r.chat) > limit {
		start = len(r.chat) - limit
	}
	out := make([]models.ChatMessage, len(r.chat)-start)
	copy(out, r.chat[start:])
	return out, nil
}

func copyRound(r *models.Round) *models.Round {
	c := *r
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}
