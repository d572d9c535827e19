package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeRemaining(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected TimeRemaining
	}{
		{"zero", 0, TimeRemaining{}},
		{"negative clamps", -5 * time.Minute, TimeRemaining{}},
		{"seconds only", 42 * time.Second, TimeRemaining{Seconds: 42}},
		{"sub-second truncates", 1500 * time.Millisecond, TimeRemaining{Seconds: 1}},
		{"mixed", 2*time.Hour + 3*time.Minute + 4*time.Second, TimeRemaining{Hours: 2, Minutes: 3, Seconds: 4}},
		{"full day", 24 * time.Hour, TimeRemaining{Hours: 24}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewTimeRemaining(tt.duration))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    Amount
		wantErr bool
	}{
		{"0", 0, false},
		{"10", 1000, false},
		{"10.5", 1050, false},
		{"10.05", 1005, false},
		{".75", 75, false},
		{"-3.20", -320, false},
		{" 12.34 ", 1234, false},
		{"", 0, true},
		{"1.234", 0, true},
		{"1.", 0, true},
		{"abc", 0, true},
		{"-", 0, true},
		{"--5", 0, true},
		{"+5", 0, true},
		{"1.-5", 0, true},
		{"1.+5", 0, true},
		{"1 000", 0, true},
		{"92233720368547757.99", 92233720368547757*100 + 99, false},
		{"92233720368547758.00", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmount_String(t *testing.T) {
	assert.Equal(t, "0.00", Amount(0).String())
	assert.Equal(t, "0.07", Amount(7).String())
	assert.Equal(t, "12345.60", Amount(1234560).String())
	assert.Equal(t, "-1.05", Amount(-105).String())
}

func TestAmount_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Pool Amount `json:"prizePool"`
	}{Pool: 150025})
	require.NoError(t, err)
	assert.JSONEq(t, `{"prizePool":"1500.25"}`, string(data))

	var fromString Amount
	require.NoError(t, json.Unmarshal([]byte(`"99.90"`), &fromString))
	assert.Equal(t, Amount(9990), fromString)

	var fromNumber Amount
	require.NoError(t, json.Unmarshal([]byte(`12.5`), &fromNumber))
	assert.Equal(t, Amount(1250), fromNumber)

	var bad Amount
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}

func TestNewGameState(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	round := &Round{
		Status:    RoundStatusActive,
		PrizePool: 5000,
		LastBuyer: "0xabc",
		BuyCount:  3,
		StartedAt: now.Add(-time.Hour),
		EndsAt:    now.Add(90 * time.Second),
	}

	state := NewGameState(round, now)
	assert.Equal(t, TimeRemaining{Minutes: 1, Seconds: 30}, state.TimeRemaining)
	assert.Equal(t, "0xabc", state.LastBuyer)
	assert.Equal(t, Amount(5000), state.PrizePool)
	assert.Equal(t, round.EndsAt.UnixMilli(), state.EndsAt)

	assert.False(t, round.Expired(now))
	assert.True(t, round.Expired(round.EndsAt))
	assert.Equal(t, TimeRemaining{}, NewGameState(round, now.Add(time.Hour)).TimeRemaining)
}
