package arenadto

const (
	TypeUpdatePlayers   = "updatePlayers"
	TypeUpdateGames     = "updateGames"
	TypeGameCreated     = "gameCreated"
	TypeUpdateGameState = "updateGameState"
)

// PreviewPlaceholder stands in for the name of an empty seat.
const PreviewPlaceholder = "---"

type TimeControl struct {
	Minutes   float64 `json:"minutes"`
	Increment int     `json:"increment"`
}

// GamePreview is the public listing entry of a room.
type GamePreview struct {
	ID      string      `json:"id"`
	Player1 string      `json:"player1"`
	Player2 string      `json:"player2"`
	Time    TimeControl `json:"time"`
}

type UpdatePlayers struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type UpdateGames struct {
	Type  string        `json:"type"`
	Games []GamePreview `json:"games"`
}

type GameCreated struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type ErrorMessage struct {
	Error string `json:"error"`
}

// PreviewResponse is served by the HTTP preview endpoint.
type PreviewResponse struct {
	Auth    AuthInfo    `json:"auth"`
	ID      string      `json:"id"`
	Player1 string      `json:"player1"`
	Player2 string      `json:"player2"`
	Time    TimeControl `json:"time"`
}

type AuthInfo struct {
	Username string `json:"username"`
}

type LobbyResponse struct {
	Players int           `json:"players"`
	Games   []GamePreview `json:"games"`
}
