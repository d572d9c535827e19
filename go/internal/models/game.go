package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundStatus defines the lifecycle state of a round.
type RoundStatus string

const (
	RoundStatusActive RoundStatus = "active"
	RoundStatusEnded  RoundStatus = "ended"
)

// Round is the authoritative record of one last-buyer-wins round.
type Round struct {
	ID        uuid.UUID   `json:"id"`
	Status    RoundStatus `json:"status"`
	PrizePool Amount      `json:"prizePool"`
	LastBuyer string      `json:"lastBuyer"`
	BuyCount  int         `json:"buyCount"`
	StartedAt time.Time   `json:"startedAt"`
	EndsAt    time.Time   `json:"endsAt"`
	EndedAt   *time.Time  `json:"endedAt,omitempty"`
	Winner    string      `json:"winner,omitempty"`
}

// Expired reports whether the round deadline has passed at now.
func (r *Round) Expired(now time.Time) bool {
	return !now.Before(r.EndsAt)
}

// TimeRemaining is the countdown split into clock components.
type TimeRemaining struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// NewTimeRemaining splits d into hours, minutes and seconds. Negative durations clamp to zero.
func NewTimeRemaining(d time.Duration) TimeRemaining {
	if d <= 0 {
		return TimeRemaining{}
	}
	total := int(d / time.Second)
	return TimeRemaining{
		Hours:   total / 3600,
		Minutes: (total % 3600) / 60,
		Seconds: total % 60,
	}
}

// GameState is the public view of the current round.
type GameState struct {
	RoundID       string        `json:"roundId"`
	Status        RoundStatus   `json:"status"`
	PrizePool     Amount        `json:"prizePool"`
	TimeRemaining TimeRemaining `json:"timeRemaining"`
	LastBuyer     string        `json:"lastBuyer"`
	BuyCount      int           `json:"buyCount"`
	EndsAt        int64         `json:"endsAt"`
	Winner        string        `json:"winner,omitempty"`
}

// NewGameState builds the public view of r as seen at now.
func NewGameState(r *Round, now time.Time) *GameState {
	return &GameState{
		RoundID:       r.ID.String(),
		Status:        r.Status,
		PrizePool:     r.PrizePool,
		TimeRemaining: NewTimeRemaining(r.EndsAt.Sub(now)),
		LastBuyer:     r.LastBuyer,
		BuyCount:      r.BuyCount,
		EndsAt:        r.EndsAt.UnixMilli(),
		Winner:        r.Winner,
	}
}

// PlayerStatus is the categorical standing of a wallet in the current round.
type PlayerStatus string

const (
	PlayerStatusWinning   PlayerStatus = "winning"
	PlayerStatusLosing    PlayerStatus = "losing"
	PlayerStatusNotBought PlayerStatus = "notBought"
)

// PlayerState is the standing of one wallet address.
type PlayerState struct {
	Address  string       `json:"address"`
	Status   PlayerStatus `json:"status"`
	BuyCount int          `json:"buyCount"`
}

// BuyEvent records a single buy.
type BuyEvent struct {
	RoundID   uuid.UUID `json:"roundId"`
	Address   string    `json:"address"`
	Amount    Amount    `json:"amount"`
	Timestamp int64     `json:"timestamp"`
}

// ChatMessage is a single chat line.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	Timestamp int64     `json:"timestamp"`
}
