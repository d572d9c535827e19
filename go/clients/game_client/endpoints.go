package game_client

const (
	// DefaultAPIEndpoint is where the game API is mounted relative to the base URL
	DefaultAPIEndpoint = "/api"

	// Feed endpoint relative to the base URL
	FeedEndpoint = "/ws"

	GameStateEndpoint = "/game-state"
	PlayerEndpoint    = "/player/" // + address
	BuyEndpoint       = "/buy"
	ChatEndpoint      = "/chat"
)
