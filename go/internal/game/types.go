package game

import (
	"time"

	"github.com/mcdev12/lastbuyer/go/internal/models"
)

// Rules configures round timing and economics
type Rules struct {
	RoundDuration     time.Duration `yaml:"round_duration"`
	BuyExtension      time.Duration `yaml:"buy_extension"`
	MaxCountdown      time.Duration `yaml:"max_countdown"`
	BuyPrice          models.Amount `yaml:"buy_price"`
	SeedPool          models.Amount `yaml:"seed_pool"`
	RestartDelay      time.Duration `yaml:"restart_delay"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
	ChatMaxLength     int           `yaml:"chat_max_length"`
	ChatHistory       int           `yaml:"chat_history"`
}

// DefaultRules returns the default game rules
func DefaultRules() Rules {
	return Rules{
		RoundDuration:     24 * time.Hour,
		BuyExtension:      30 * time.Second,
		MaxCountdown:      24 * time.Hour,
		BuyPrice:          1000, // 10.00
		SeedPool:          0,
		RestartDelay:      time.Minute,
		BroadcastInterval: 10 * time.Second,
		ChatMaxLength:     280,
		ChatHistory:       50,
	}
}

// withDefaults fills zero fields from DefaultRules. RestartDelay and SeedPool keep zero
// because zero is meaningful for both.
func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.RoundDuration <= 0 {
		r.RoundDuration = d.RoundDuration
	}
	if r.BuyExtension <= 0 {
		r.BuyExtension = d.BuyExtension
	}
	if r.MaxCountdown <= 0 {
		r.MaxCountdown = d.MaxCountdown
	}
	if r.BuyPrice <= 0 {
		r.BuyPrice = d.BuyPrice
	}
	if r.BroadcastInterval <= 0 {
		r.BroadcastInterval = d.BroadcastInterval
	}
	if r.ChatMaxLength <= 0 {
		r.ChatMaxLength = d.ChatMaxLength
	}
	if r.ChatHistory <= 0 {
		r.ChatHistory = d.ChatHistory
	}
	return r
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error string `json:"error"`
}
