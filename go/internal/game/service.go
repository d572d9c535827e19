package game

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/lastbuyer/go/internal/models"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 4 << 10

// GameApp defines what the HTTP layer needs from the game application
type GameApp interface {
	GetGameState(ctx context.Context) (*models.GameState, error)
	GetPlayer(ctx context.Context, address string) (*models.PlayerState, error)
	Buy(ctx context.Context, address string) (*models.BuyResult, error)
	SendChat(ctx context.Context, req models.ChatRequest) (*models.ChatMessage, error)
	RecentChat(ctx context.Context) ([]models.ChatMessage, error)
}

// Service exposes the game over JSON HTTP
type Service struct {
	app GameApp
}

// NewService creates a new game HTTP service
func NewService(app GameApp) *Service {
	return &Service{
		app: app,
	}
}

// RegisterRoutes registers the game API under /api
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/game-state", s.HandleGetGameState)
	mux.HandleFunc("GET /api/player/{address}", s.HandleGetPlayer)
	mux.HandleFunc("POST /api/buy", s.HandleBuy)
	mux.HandleFunc("POST /api/chat", s.HandleSendChat)
	mux.HandleFunc("GET /api/chat", s.HandleRecentChat)
	log.Info().Msg("game API routes registered")
}

// HandleGetGameState handles GET /api/game-state
func (s *Service) HandleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.app.GetGameState(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleGetPlayer handles GET /api/player/{address}
func (s *Service) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := s.app.GetPlayer(r.Context(), r.PathValue("address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

// HandleBuy handles POST /api/buy
func (s *Service) HandleBuy(w http.ResponseWriter, r *http.Request) {
	var req models.BuyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.app.Buy(r.Context(), req.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleSendChat handles POST /api/chat
func (s *Service) HandleSendChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := s.app.SendChat(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ChatResult{Success: true, ChatData: msg})
}

// HandleRecentChat handles GET /api/chat
func (s *Service) HandleRecentChat(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.app.RecentChat(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// writeError maps app errors onto HTTP statuses. Unknown errors are logged and hidden.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, ErrAddressRequired),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrChatFieldsRequired),
		errors.Is(err, ErrMessageTooLong):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, ErrRoundOver):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, ErrNoRound):
		status = http.StatusServiceUnavailable
		message = "game has not started"
	default:
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("game request failed")
	}

	writeJSON(w, status, ErrorResponse{Error: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
