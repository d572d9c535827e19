package models

// BuyRequest is the body of POST /api/buy
type BuyRequest struct {
	Address string `json:"address"`
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

// BuyResult is returned from a successful buy
type BuyResult struct {
	Success    bool         `json:"success"`
	GameData   *GameState   `json:"gameData"`
	PlayerData *PlayerState `json:"playerData"`
	BuyData    *BuyEvent    `json:"buyData"`
}

// ChatResult is returned from a successful chat send
type ChatResult struct {
	Success  bool         `json:"success"`
	ChatData *ChatMessage `json:"chatData"`
}
