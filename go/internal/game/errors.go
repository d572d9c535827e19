package game

import "errors"

var (
	// ErrAddressRequired is returned when a wallet address is missing
	ErrAddressRequired = errors.New("address is required")
	// ErrInvalidAddress is returned when an address contains whitespace or is too long
	ErrInvalidAddress = errors.New("address is invalid")
	// ErrChatFieldsRequired is returned when a chat message lacks an address or text
	ErrChatFieldsRequired = errors.New("address and message are required")
	// ErrMessageTooLong is returned when chat text exceeds the configured limit
	ErrMessageTooLong = errors.New("message is too long")
	// ErrRoundOver is returned for buys after the deadline or on a settled round
	ErrRoundOver = errors.New("round is over")
	// ErrRoundActive is returned when starting a round while another is still running
	ErrRoundActive = errors.New("round is still active")
	// ErrNoRound is returned when no round has been started yet
	ErrNoRound = errors.New("no round")
)
